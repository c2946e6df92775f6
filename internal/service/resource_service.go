package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/models"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
	"github.com/learnbridge/learnbridge-api/pkg/export"
)

const statsCacheKey = "resources:stats"

// ResourceRepository defines persistence operations for resources.
type ResourceRepository interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	UpdateFields(ctx context.Context, resource *models.Resource) error
	MarkReviewed(ctx context.Context, id string, status models.ResourceStatus, reviewerID, reviewNotes string, category models.ResourceCategory) (bool, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.ResourceStats, error)
}

// FileStore abstracts the on-disk upload store.
type FileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// DownloadResult bundles everything a handler needs to stream a file back.
type DownloadResult struct {
	File     *os.File
	FileName string
	MimeType string
	Size     int64
}

// ResourceService drives the submission review workflow.
type ResourceService struct {
	repo     ResourceRepository
	store    FileStore
	gate     *UploadGate
	cache    *CacheService
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewResourceService(repo ResourceRepository, store FileStore, gate *UploadGate, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = NewUploadGate(0, nil)
	}
	return &ResourceService{
		repo:     repo,
		store:    store,
		gate:     gate,
		cache:    cache,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

// SubmitForReview admits the upload, stores the file and creates a pending
// record. The file is written before the insert; on insert failure the file
// is removed again so no orphan remains on disk.
func (s *ResourceService) SubmitForReview(ctx context.Context, actor *models.JWTClaims, req models.SubmitResourceRequest, upload ResourceUpload) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title, description, year, semester and module are required")
	}
	category := models.CategoryOther
	if req.Category != "" {
		category = models.ResourceCategory(req.Category)
		if !models.ValidCategory(category) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
	}

	mimeType, err := s.gate.Admit(upload)
	if err != nil {
		return nil, err
	}

	storedName := fmt.Sprintf("%s-%s", uuid.New().String(), sanitizeFilename(upload.Filename))
	path, err := s.store.SaveStream(storedName, upload.Content)
	if err != nil {
		s.logger.Error("failed to store upload", zap.String("filename", upload.Filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	now := time.Now().UTC()
	resource := &models.Resource{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		FilePath:    path,
		FileName:    upload.Filename,
		FileSize:    upload.Size,
		MimeType:    mimeType,
		Year:        req.Year,
		Semester:    req.Semester,
		Module:      strings.TrimSpace(req.Module),
		Category:    category,
		UploadedBy:  actor.UserID,
		Status:      models.StatusPending,
		Tags:        normalizeTags(req.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		if delErr := s.store.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", storedName), zap.Error(delErr))
		}
		s.logger.Error("failed to create resource", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}

	s.invalidate(ctx)
	s.metrics.RecordSubmission()
	s.logger.Info("resource submitted for review",
		zap.String("resource_id", resource.ID),
		zap.String("uploaded_by", actor.UserID),
		zap.String("module", resource.Module))
	return resource, nil
}

// UploadDirect shares the submission pipeline. Records still enter the
// workflow as pending regardless of the caller's role.
func (s *ResourceService) UploadDirect(ctx context.Context, actor *models.JWTClaims, req models.SubmitResourceRequest, upload ResourceUpload) (*models.Resource, error) {
	return s.SubmitForReview(ctx, actor, req, upload)
}

// Approve marks a pending resource approved. The update is conditional on the
// current status so concurrent reviewers cannot both win.
func (s *ResourceService) Approve(ctx context.Context, actor *models.JWTClaims, id string, req models.ReviewRequest) (*models.Resource, error) {
	return s.review(ctx, actor, id, models.StatusApproved, req)
}

// Reject marks a pending resource rejected. Review notes are mandatory so the
// uploader always learns why.
func (s *ResourceService) Reject(ctx context.Context, actor *models.JWTClaims, id string, req models.ReviewRequest) (*models.Resource, error) {
	if strings.TrimSpace(req.ReviewNotes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "review notes are required when rejecting a resource")
	}
	req.Category = ""
	return s.review(ctx, actor, id, models.StatusRejected, req)
}

func (s *ResourceService) review(ctx context.Context, actor *models.JWTClaims, id string, verdict models.ResourceStatus, req models.ReviewRequest) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !CanReviewResource(actor.Role) {
		return nil, appErrors.ErrForbidden
	}
	category := models.ResourceCategory(req.Category)
	if req.Category != "" && !models.ValidCategory(category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	affected, err := s.repo.MarkReviewed(ctx, id, verdict, actor.UserID, strings.TrimSpace(req.ReviewNotes), category)
	if err != nil {
		s.logger.Error("failed to review resource", zap.String("resource_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource")
	}
	if !affected {
		// Either the id does not exist or the resource left pending already.
		if _, findErr := s.findResource(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, appErrors.ErrAlreadyReviewed
	}

	s.invalidate(ctx)
	s.metrics.RecordReview(verdict)
	s.logger.Info("resource reviewed",
		zap.String("resource_id", id),
		zap.String("verdict", string(verdict)),
		zap.String("reviewed_by", actor.UserID))
	return s.findResource(ctx, id)
}

// OwnerUpdate lets the uploader (or an admin) edit submission metadata.
func (s *ResourceService) OwnerUpdate(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateResourceRequest) (*models.Resource, error) {
	return s.update(ctx, actor, id, req, false)
}

// ManagerUpdate lets manager-equivalent roles edit any resource.
func (s *ResourceService) ManagerUpdate(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateResourceRequest) (*models.Resource, error) {
	return s.update(ctx, actor, id, req, true)
}

func (s *ResourceService) update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateResourceRequest, management bool) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	resource, err := s.findResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanMutateResource(actor, resource, management) {
		return nil, appErrors.ErrForbidden
	}

	if req.Title != nil {
		resource.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		resource.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		category := models.ResourceCategory(*req.Category)
		if !models.ValidCategory(category) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		resource.Category = category
	}
	if req.Tags != nil {
		resource.Tags = normalizeTags(req.Tags)
	}
	resource.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateFields(ctx, resource); err != nil {
		s.logger.Error("failed to update resource", zap.String("resource_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource")
	}

	s.invalidate(ctx)
	return resource, nil
}

// Delete removes a resource record and its stored file. A missing file on
// disk is ignored; the record is the source of truth.
func (s *ResourceService) Delete(ctx context.Context, actor *models.JWTClaims, id string, management bool) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	resource, err := s.findResource(ctx, id)
	if err != nil {
		return err
	}
	if !CanMutateResource(actor, resource, management) {
		return appErrors.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		s.logger.Error("failed to delete resource", zap.String("resource_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}

	if delErr := s.store.Delete(resource.FilePath); delErr != nil {
		s.logger.Warn("failed to delete stored file", zap.String("file", resource.FilePath), zap.Error(delErr))
	}

	s.invalidate(ctx)
	s.logger.Info("resource deleted",
		zap.String("resource_id", id),
		zap.String("deleted_by", actor.UserID))
	return nil
}

// Download opens the stored file and atomically bumps the download counter.
func (s *ResourceService) Download(ctx context.Context, id string) (*DownloadResult, error) {
	resource, err := s.findResource(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := s.store.Open(resource.FilePath)
	if err != nil {
		s.logger.Warn("stored file missing", zap.String("resource_id", id), zap.String("file", resource.FilePath))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to increment download count", zap.String("resource_id", id), zap.Error(err))
	}
	s.metrics.RecordDownload()

	return &DownloadResult{
		File:     file,
		FileName: resource.FileName,
		MimeType: resource.MimeType,
		Size:     resource.FileSize,
	}, nil
}

// Get returns one resource by id.
func (s *ResourceService) Get(ctx context.Context, id string) (*models.Resource, error) {
	return s.findResource(ctx, id)
}

// List returns resources matching the caller-supplied filter.
func (s *ResourceService) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	filter.Page = models.NormalizePage(filter.Page)
	filter.Limit = models.NormalizeLimit(filter.Limit)

	resources, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list resources", zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return resources, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Pending lists submissions awaiting review.
func (s *ResourceService) Pending(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	filter.Status = models.StatusPending
	filter.UploadedBy = ""
	return s.List(ctx, filter)
}

// approvedPage is the cached shape of one approved-listing page.
type approvedPage struct {
	Items []models.Resource `json:"items"`
	Total int               `json:"total"`
}

// Approved lists published resources for public browsing. Pages are
// cached per filter combination and invalidated on any mutation.
func (s *ResourceService) Approved(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	filter.Status = models.StatusApproved
	filter.UploadedBy = ""
	filter.Page = models.NormalizePage(filter.Page)
	filter.Limit = models.NormalizeLimit(filter.Limit)

	key := fmt.Sprintf("resources:approved:%d:%d:%s:%s:%d:%d:%s",
		filter.Page, filter.Limit, filter.Category, filter.Search, filter.Year, filter.Semester, filter.Module)

	var cached approvedPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, models.NewPagination(filter.Page, filter.Limit, cached.Total), nil
	}

	resources, pagination, err := s.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	s.cache.Set(ctx, key, approvedPage{Items: resources, Total: pagination.Total})
	return resources, pagination, nil
}

// MyResources lists everything the actor has uploaded, any status.
func (s *ResourceService) MyResources(ctx context.Context, actor *models.JWTClaims, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter.UploadedBy = actor.UserID
	return s.List(ctx, filter)
}

// Stats returns per-status counts, cached in Redis until the next mutation.
func (s *ResourceService) Stats(ctx context.Context) (*models.ResourceStats, error) {
	var cached models.ResourceStats
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.logger.Error("failed to compute resource stats", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute stats")
	}

	s.cache.Set(ctx, statsCacheKey, stats)
	return stats, nil
}

// ExportStats renders the per-status counts as CSV or PDF bytes.
func (s *ResourceService) ExportStats(ctx context.Context, format string) ([]byte, string, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Status", "Count"},
		Rows: []map[string]string{
			{"Status": "pending", "Count": fmt.Sprintf("%d", stats.Pending)},
			{"Status": "approved", "Count": fmt.Sprintf("%d", stats.Approved)},
			{"Status": "rejected", "Count": fmt.Sprintf("%d", stats.Rejected)},
			{"Status": "total", "Count": fmt.Sprintf("%d", stats.Total)},
		},
	}

	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Resource Statistics")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format; use csv or pdf")
	}
}

func (s *ResourceService) findResource(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		s.logger.Error("failed to load resource", zap.String("resource_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return resource, nil
}

func (s *ResourceService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, "resources:*")
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		name = "upload"
	}
	return name
}
