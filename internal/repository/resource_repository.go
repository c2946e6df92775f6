package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnbridge/learnbridge-api/internal/models"
)

// ResourceRepository manages persistence for learning-resource submissions.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs a ResourceRepository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, title, description, file_path, file_name, file_size, mime_type,
        year, semester, module, module_id, category, uploaded_by, status,
        reviewed_by, review_date, review_notes, download_count, tags, created_at, updated_at`

// List returns resources matching the filter, newest first, with a total count.
// All predicates combine conjunctively; zero values are skipped.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" && filter.Category != "all" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Module != "" {
		conditions = append(conditions, fmt.Sprintf("module = $%d", len(args)+1))
		args = append(args, filter.Module)
	}
	if filter.UploadedBy != "" {
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", len(args)+1))
		args = append(args, filter.UploadedBy)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $%d))", n, n, n))
		args = append(args, "%"+filter.Search+"%")
	}

	where := strings.Join(conditions, " AND ")
	page := models.NormalizePage(filter.Page)
	limit := models.NormalizeLimit(filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s FROM resources WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		resourceColumns, where, limit, offset)

	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM resources WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}
	return resources, total, nil
}

// FindByID fetches a resource by ID.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	var resource models.Resource
	query := fmt.Sprintf("SELECT %s FROM resources WHERE id = $1", resourceColumns)
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		return nil, err
	}
	return &resource, nil
}

// Create inserts a new resource record.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now
	const query = `INSERT INTO resources (id, title, description, file_path, file_name, file_size, mime_type,
        year, semester, module, module_id, category, uploaded_by, status,
        reviewed_by, review_date, review_notes, download_count, tags, created_at, updated_at)
        VALUES (:id, :title, :description, :file_path, :file_name, :file_size, :mime_type,
        :year, :semester, :module, :module_id, :category, :uploaded_by, :status,
        :reviewed_by, :review_date, :review_notes, :download_count, :tags, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// UpdateFields modifies the owner-mutable attributes. Status is not reachable
// through this path.
func (r *ResourceRepository) UpdateFields(ctx context.Context, resource *models.Resource) error {
	resource.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resources SET title = :title, description = :description, category = :category, tags = :tags, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

// MarkReviewed performs the one-shot pending transition as a conditional
// update, returning false when the record was no longer pending. An empty
// category leaves the stored category untouched.
func (r *ResourceRepository) MarkReviewed(ctx context.Context, id string, status models.ResourceStatus, reviewerID, reviewNotes string, category models.ResourceCategory) (bool, error) {
	const query = `UPDATE resources
        SET status = $2, reviewed_by = $3, review_date = $4, review_notes = $5,
            category = COALESCE(NULLIF($6, ''), category), updated_at = $4
        WHERE id = $1 AND status = $7`
	res, err := r.db.ExecContext(ctx, query, id, status, reviewerID, time.Now().UTC(), reviewNotes, string(category), models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark reviewed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reviewed affected rows: %w", err)
	}
	return affected == 1, nil
}

// IncrementDownloadCount bumps the download counter atomically.
func (r *ResourceRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	const query = `UPDATE resources SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a resource record.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM resources WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByModuleName counts resources referencing the module by its
// denormalized name. Backs the module-deletion referential guard.
func (r *ResourceRepository) CountByModuleName(ctx context.Context, name string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM resources WHERE module = $1`
	if err := r.db.GetContext(ctx, &count, query, name); err != nil {
		return 0, fmt.Errorf("count resources by module: %w", err)
	}
	return count, nil
}

// Stats aggregates per-status counts in a single round trip.
func (r *ResourceRepository) Stats(ctx context.Context) (*models.ResourceStats, error) {
	var stats models.ResourceStats
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'pending') AS pending,
        COUNT(*) FILTER (WHERE status = 'approved') AS approved,
        COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
        COUNT(*) AS total
        FROM resources`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("resource stats: %w", err)
	}
	return &stats, nil
}
