package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/models"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
)

// ModuleRepository defines persistence operations for the module catalog.
type ModuleRepository interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error)
	FindByID(ctx context.Context, id string) (*models.Module, error)
	ExistsByNameYearSemester(ctx context.Context, name string, year, semester int, excludeID string) (bool, error)
	Create(ctx context.Context, module *models.Module) error
	Update(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, id string) error
}

// ResourceCounter counts resources attached to a module by its stored name.
type ResourceCounter interface {
	CountByModuleName(ctx context.Context, name string) (int, error)
}

// ModuleService manages the module catalog: uniqueness on
// (name, year, semester) and a referential guard against deleting modules
// that still have resources.
type ModuleService struct {
	repo      ModuleRepository
	resources ResourceCounter
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewModuleService(repo ModuleRepository, resources ResourceCounter, logger *zap.Logger) *ModuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleService{
		repo:      repo,
		resources: resources,
		validate:  validator.New(),
		logger:    logger,
	}
}

// List returns catalog entries filtered by year/semester.
func (s *ModuleService) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, *models.Pagination, error) {
	filter.Page = models.NormalizePage(filter.Page)
	filter.Limit = models.NormalizeLimit(filter.Limit)

	modules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list modules", zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	return modules, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get returns a single module by id.
func (s *ModuleService) Get(ctx context.Context, id string) (*models.Module, error) {
	module, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		s.logger.Error("failed to load module", zap.String("module_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

// Create adds a catalog entry after checking (name, year, semester)
// uniqueness.
func (s *ModuleService) Create(ctx context.Context, actor *models.JWTClaims, req models.ModuleRequest) (*models.Module, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, year and semester are required")
	}
	name := strings.TrimSpace(req.Name)

	exists, err := s.repo.ExistsByNameYearSemester(ctx, name, req.Year, req.Semester, "")
	if err != nil {
		s.logger.Error("failed to check module uniqueness", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a module with this name already exists for the given year and semester")
	}

	now := time.Now().UTC()
	module := &models.Module{
		ID:        uuid.New().String(),
		Name:      name,
		Year:      req.Year,
		Semester:  req.Semester,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, module); err != nil {
		s.logger.Error("failed to create module", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}

	s.logger.Info("module created", zap.String("module_id", module.ID), zap.String("name", module.Name))
	return module, nil
}

// Update renames or moves a module, enforcing uniqueness against every other
// entry.
func (s *ModuleService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.ModuleRequest) (*models.Module, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, year and semester are required")
	}

	module, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)

	exists, err := s.repo.ExistsByNameYearSemester(ctx, name, req.Year, req.Semester, id)
	if err != nil {
		s.logger.Error("failed to check module uniqueness", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a module with this name already exists for the given year and semester")
	}

	module.Name = name
	module.Year = req.Year
	module.Semester = req.Semester
	module.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, module); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		s.logger.Error("failed to update module", zap.String("module_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}
	return module, nil
}

// Delete removes a module unless resources still reference it by name.
func (s *ModuleService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	module, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.resources.CountByModuleName(ctx, module.Name)
	if err != nil {
		s.logger.Error("failed to count module resources", zap.String("module_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete module")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "module still has resources attached and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		s.logger.Error("failed to delete module", zap.String("module_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete module")
	}

	s.logger.Info("module deleted", zap.String("module_id", id), zap.String("deleted_by", actor.UserID))
	return nil
}
