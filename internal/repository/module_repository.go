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

// ModuleRepository manages persistence for academic modules.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs a ModuleRepository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

const moduleColumns = "id, name, year, semester, created_by, created_at, updated_at"

// List returns modules matching the year/semester filters with a total count.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	where := strings.Join(conditions, " AND ")
	page := models.NormalizePage(filter.Page)
	limit := models.NormalizeLimit(filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s FROM modules WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		moduleColumns, where, limit, offset)

	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list modules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM modules WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count modules: %w", err)
	}
	return modules, total, nil
}

// FindByID fetches a module by ID.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	var module models.Module
	query := fmt.Sprintf("SELECT %s FROM modules WHERE id = $1", moduleColumns)
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		return nil, err
	}
	return &module, nil
}

// ExistsByNameYearSemester checks the (name, year, semester) uniqueness
// invariant, optionally excluding an ID for updates.
func (r *ModuleRepository) ExistsByNameYearSemester(ctx context.Context, name string, year, semester int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM modules WHERE name = $1 AND year = $2 AND semester = $3"
	args := []interface{}{name, year, semester}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check module uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new module record.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = now
	}
	module.UpdatedAt = now
	const query = `INSERT INTO modules (id, name, year, semester, created_by, created_at, updated_at)
        VALUES (:id, :name, :year, :semester, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Update modifies an existing module.
func (r *ModuleRepository) Update(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET name = :name, year = :year, semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// Delete removes a module record.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM modules WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
