package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/models"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
	"github.com/learnbridge/learnbridge-api/pkg/storage"
)

type mockResourceRepo struct {
	items      map[string]*models.Resource
	listResult []models.Resource
	listTotal  int
	listErr    error
	lastFilter models.ResourceFilter
	listCalls  int
	createErr  error
	stats      models.ResourceStats
	statsCalls int
}

func (m *mockResourceRepo) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	m.lastFilter = filter
	m.listCalls++
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if resource, ok := m.items[id]; ok {
		cp := *resource
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.Resource)
	}
	cp := *resource
	m.items[resource.ID] = &cp
	return nil
}

func (m *mockResourceRepo) UpdateFields(ctx context.Context, resource *models.Resource) error {
	if _, ok := m.items[resource.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *resource
	m.items[resource.ID] = &cp
	return nil
}

func (m *mockResourceRepo) MarkReviewed(ctx context.Context, id string, status models.ResourceStatus, reviewerID, reviewNotes string, category models.ResourceCategory) (bool, error) {
	resource, ok := m.items[id]
	if !ok || resource.Status != models.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	resource.Status = status
	resource.ReviewedBy = &reviewerID
	resource.ReviewDate = &now
	resource.ReviewNotes = &reviewNotes
	if category != "" {
		resource.Category = category
	}
	resource.UpdatedAt = now
	return true, nil
}

func (m *mockResourceRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	resource, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	resource.DownloadCount++
	return nil
}

func (m *mockResourceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockResourceRepo) Stats(ctx context.Context) (*models.ResourceStats, error) {
	m.statsCalls++
	cp := m.stats
	return &cp, nil
}

type mockCacheRepo struct {
	values map[string][]byte
	sets   int
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := m.values[key]; !ok {
		return appErrors.ErrCacheMiss
	}
	if stats, ok := dest.(*models.ResourceStats); ok {
		stats.Total = 99
	}
	return nil
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = []byte("1")
	m.sets++
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.values = make(map[string][]byte)
	return nil
}

func newTestResourceService(t *testing.T, repo *mockResourceRepo) (*ResourceService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewResourceService(repo, store, NewUploadGate(0, nil), nil, nil, zap.NewNop())
	return svc, dir
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func managerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleResourceManager}
}

func pdfUpload(name string) ResourceUpload {
	content := []byte("%PDF-1.4 test document body")
	return ResourceUpload{
		Filename: name,
		Size:     int64(len(content)),
		MimeType: "application/pdf",
		Content:  bytes.NewReader(content),
	}
}

func validSubmission() models.SubmitResourceRequest {
	return models.SubmitResourceRequest{
		Title:       "Calculus Notes",
		Description: "Chapter 1 summary",
		Year:        2,
		Semester:    1,
		Module:      "Mathematics II",
		Tags:        []string{"calculus", "notes"},
	}
}

func TestResourceServiceSubmitCreatesPending(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, dir := newTestResourceService(t, repo)

	resource, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), validSubmission(), pdfUpload("notes.pdf"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, resource.Status)
	assert.Equal(t, "student-1", resource.UploadedBy)
	assert.Equal(t, 0, resource.DownloadCount)
	assert.Equal(t, models.CategoryOther, resource.Category)
	assert.Equal(t, "notes.pdf", resource.FileName)
	assert.Len(t, repo.items, 1)

	_, statErr := os.Stat(filepath.Join(dir, resource.FilePath))
	assert.NoError(t, statErr)
}

func TestResourceServiceSubmitDropsBlankTags(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	req := validSubmission()
	req.Tags = []string{" calculus ", "", "   ", "notes"}

	resource, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), req, pdfUpload("notes.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []string{"calculus", "notes"}, []string(resource.Tags))
}

func TestResourceServiceSubmitRejectsDisallowedType(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, dir := newTestResourceService(t, repo)

	content := []byte("PK\x03\x04 zip archive bytes")
	upload := ResourceUpload{
		Filename: "archive.zip",
		Size:     int64(len(content)),
		MimeType: "application/zip",
		Content:  bytes.NewReader(content),
	}

	_, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), validSubmission(), upload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Rejection happens before any record or file exists.
	assert.Empty(t, repo.items)
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestResourceServiceSubmitMissingFieldsFails(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	req := validSubmission()
	req.Title = ""

	_, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), req, pdfUpload("notes.pdf"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.Empty(t, repo.items)
}

func TestResourceServiceSubmitCompensatesOnCreateFailure(t *testing.T) {
	repo := &mockResourceRepo{createErr: errors.New("insert failed")}
	svc, dir := newTestResourceService(t, repo)

	_, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), validSubmission(), pdfUpload("notes.pdf"))
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "stored file must be removed when the record insert fails")
}

func TestResourceServiceApprove(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, Category: models.CategoryOther, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	resource, err := svc.Approve(context.Background(), managerClaims("mgr-1"), "r1", models.ReviewRequest{Category: "lecture"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, resource.Status)
	assert.Equal(t, models.CategoryLecture, resource.Category)
	require.NotNil(t, resource.ReviewedBy)
	assert.Equal(t, "mgr-1", *resource.ReviewedBy)
	assert.NotNil(t, resource.ReviewDate)
}

func TestResourceServiceApproveTwiceConflicts(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	_, err := svc.Approve(context.Background(), managerClaims("mgr-1"), "r1", models.ReviewRequest{})
	require.NoError(t, err)

	before := *repo.items["r1"]
	_, err = svc.Approve(context.Background(), managerClaims("mgr-2"), "r1", models.ReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyReviewed.Code, appErrors.FromError(err).Code)
	assert.Equal(t, before, *repo.items["r1"], "a conflicting review must leave the record unchanged")
}

func TestResourceServiceApproveMissingResource(t *testing.T) {
	svc, _ := newTestResourceService(t, &mockResourceRepo{})

	_, err := svc.Approve(context.Background(), managerClaims("mgr-1"), "nope", models.ReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceReviewForbiddenForStudent(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	_, err := svc.Approve(context.Background(), studentClaims("student-1"), "r1", models.ReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusPending, repo.items["r1"].Status)
}

func TestResourceServiceRejectRequiresNotes(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	_, err := svc.Reject(context.Background(), managerClaims("mgr-1"), "r1", models.ReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusPending, repo.items["r1"].Status)
}

func TestResourceServiceRejectKeepsCategory(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, Category: models.CategoryTutorial, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	resource, err := svc.Reject(context.Background(), managerClaims("mgr-1"), "r1", models.ReviewRequest{Category: "lecture", ReviewNotes: "duplicate upload"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, resource.Status)
	assert.Equal(t, models.CategoryTutorial, resource.Category)
	require.NotNil(t, resource.ReviewNotes)
	assert.Equal(t, "duplicate upload", *resource.ReviewNotes)
}

func TestResourceServiceOwnerUpdateForbiddenForNonOwner(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	title := "Hijacked"
	_, err := svc.OwnerUpdate(context.Background(), studentClaims("student-2"), "r1", models.UpdateResourceRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceOwnerUpdateMutatesAllowedFields(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusApproved, Category: models.CategoryOther, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	title := "Updated Notes"
	category := "lecture"
	resource, err := svc.OwnerUpdate(context.Background(), studentClaims("student-1"), "r1", models.UpdateResourceRequest{
		Title:    &title,
		Category: &category,
		Tags:     []string{" calculus ", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "Updated Notes", resource.Title)
	assert.Equal(t, models.CategoryLecture, resource.Category)
	assert.Equal(t, []string{"calculus"}, []string(resource.Tags))
	assert.Equal(t, models.StatusApproved, resource.Status)
}

func TestResourceServiceManagerUpdateIgnoresOwnership(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	title := "Curated Title"
	resource, err := svc.ManagerUpdate(context.Background(), managerClaims("mgr-1"), "r1", models.UpdateResourceRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Curated Title", resource.Title)
}

func TestResourceServiceDeleteByOwnerRemovesFile(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, dir := newTestResourceService(t, repo)

	resource, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), validSubmission(), pdfUpload("notes.pdf"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), studentClaims("student-1"), resource.ID, false))
	assert.Empty(t, repo.items)

	_, statErr := os.Stat(filepath.Join(dir, resource.FilePath))
	assert.True(t, os.IsNotExist(statErr))
}

func TestResourceServiceDeleteForbiddenForNonOwner(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	err := svc.Delete(context.Background(), studentClaims("student-2"), "r1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.items, 1)
}

func TestResourceServiceDownloadIncrementsCounter(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	resource, err := svc.SubmitForReview(context.Background(), studentClaims("student-1"), validSubmission(), pdfUpload("notes.pdf"))
	require.NoError(t, err)

	result, err := svc.Download(context.Background(), resource.ID)
	require.NoError(t, err)
	defer result.File.Close()

	assert.Equal(t, "notes.pdf", result.FileName)
	assert.Equal(t, "application/pdf", result.MimeType)
	assert.Equal(t, 1, repo.items[resource.ID].DownloadCount)
}

func TestResourceServiceDownloadMissingFile(t *testing.T) {
	repo := &mockResourceRepo{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusApproved, FilePath: "gone.pdf", UploadedBy: "student-1"},
	}}
	svc, _ := newTestResourceService(t, repo)

	_, err := svc.Download(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.items["r1"].DownloadCount)
}

func TestResourceServicePendingPinsStatusFilter(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	_, _, err := svc.Pending(context.Background(), models.ResourceFilter{Status: models.StatusApproved, UploadedBy: "sneaky"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, repo.lastFilter.Status)
	assert.Empty(t, repo.lastFilter.UploadedBy)
}

func TestResourceServiceMyResourcesPinsUploader(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	_, _, err := svc.MyResources(context.Background(), studentClaims("student-1"), models.ResourceFilter{UploadedBy: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, "student-1", repo.lastFilter.UploadedBy)
}

func TestResourceServiceListPagination(t *testing.T) {
	repo := &mockResourceRepo{listResult: make([]models.Resource, 10), listTotal: 25}
	svc, _ := newTestResourceService(t, repo)

	_, pagination, err := svc.List(context.Background(), models.ResourceFilter{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, pagination.Current)
	assert.Equal(t, 3, pagination.Pages)
	assert.Equal(t, 25, pagination.Total)
}

func TestResourceServiceListClampsLimit(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	_, _, err := svc.List(context.Background(), models.ResourceFilter{Limit: -5})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPageSize, repo.lastFilter.Limit)

	_, _, err = svc.List(context.Background(), models.ResourceFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, models.MaxPageSize, repo.lastFilter.Limit)
}

func TestResourceServiceStatsUsesCache(t *testing.T) {
	repo := &mockResourceRepo{stats: models.ResourceStats{Pending: 1, Approved: 2, Rejected: 3, Total: 6}}
	cacheRepo := &mockCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, zap.NewNop(), time.Minute, true)

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewResourceService(repo, store, NewUploadGate(0, nil), cacheSvc, nil, zap.NewNop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 1, repo.statsCalls)
	assert.Equal(t, 1, cacheRepo.sets)

	cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, cached.Total)
	assert.Equal(t, 1, repo.statsCalls, "second call must be served from cache")
}

func TestResourceServiceApprovedCachesPages(t *testing.T) {
	repo := &mockResourceRepo{listResult: []models.Resource{{ID: "r1"}}, listTotal: 1}
	cacheRepo := &mockCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, zap.NewNop(), time.Minute, true)

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewResourceService(repo, store, NewUploadGate(0, nil), cacheSvc, nil, zap.NewNop())

	_, pagination, err := svc.Approved(context.Background(), models.ResourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, repo.lastFilter.Status)
	assert.Equal(t, 1, pagination.Total)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cacheRepo.sets)

	_, _, err = svc.Approved(context.Background(), models.ResourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "second page read must come from cache")
}

func TestResourceServiceExportStatsCSV(t *testing.T) {
	repo := &mockResourceRepo{stats: models.ResourceStats{Pending: 1, Approved: 2, Rejected: 0, Total: 3}}
	svc, _ := newTestResourceService(t, repo)

	payload, contentType, err := svc.ExportStats(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "approved")
}

func TestResourceServiceExportStatsBadFormat(t *testing.T) {
	repo := &mockResourceRepo{}
	svc, _ := newTestResourceService(t, repo)

	_, _, err := svc.ExportStats(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
