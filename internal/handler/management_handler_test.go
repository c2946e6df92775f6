package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/middleware"
	"github.com/learnbridge/learnbridge-api/internal/models"
	"github.com/learnbridge/learnbridge-api/internal/service"
	"github.com/learnbridge/learnbridge-api/pkg/storage"
)

type resourceRepoMock struct {
	items map[string]*models.Resource
}

func (m *resourceRepoMock) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	return nil, 0, nil
}

func (m *resourceRepoMock) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if resource, ok := m.items[id]; ok {
		cp := *resource
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *resourceRepoMock) Create(ctx context.Context, resource *models.Resource) error {
	if m.items == nil {
		m.items = make(map[string]*models.Resource)
	}
	cp := *resource
	m.items[resource.ID] = &cp
	return nil
}

func (m *resourceRepoMock) UpdateFields(ctx context.Context, resource *models.Resource) error {
	cp := *resource
	m.items[resource.ID] = &cp
	return nil
}

func (m *resourceRepoMock) MarkReviewed(ctx context.Context, id string, status models.ResourceStatus, reviewerID, reviewNotes string, category models.ResourceCategory) (bool, error) {
	resource, ok := m.items[id]
	if !ok || resource.Status != models.StatusPending {
		return false, nil
	}
	now := time.Now()
	resource.Status = status
	resource.ReviewedBy = &reviewerID
	resource.ReviewDate = &now
	return true, nil
}

func (m *resourceRepoMock) IncrementDownloadCount(ctx context.Context, id string) error { return nil }

func (m *resourceRepoMock) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func (m *resourceRepoMock) Stats(ctx context.Context) (*models.ResourceStats, error) {
	return &models.ResourceStats{}, nil
}

func newManagementHandler(t *testing.T, repo *resourceRepoMock) *ManagementHandler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := service.NewResourceService(repo, store, service.NewUploadGate(0, nil), nil, nil, zap.NewNop())
	return NewManagementHandler(svc, zap.NewNop())
}

func reviewContext(t *testing.T, w *httptest.ResponseRecorder, role models.UserRole, resourceID string, payload interface{}) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, "/management/"+resourceID+"/approve", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: resourceID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: role})
	return c
}

func TestManagementHandlerApprove(t *testing.T) {
	repo := &resourceRepoMock{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	handler := newManagementHandler(t, repo)

	w := httptest.NewRecorder()
	c := reviewContext(t, w, models.RoleResourceManager, "r1", models.ReviewRequest{Category: "lecture"})

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusApproved, repo.items["r1"].Status)
}

func TestManagementHandlerApproveConflict(t *testing.T) {
	repo := &resourceRepoMock{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusApproved, UploadedBy: "student-1"},
	}}
	handler := newManagementHandler(t, repo)

	w := httptest.NewRecorder()
	c := reviewContext(t, w, models.RoleResourceManager, "r1", models.ReviewRequest{})

	handler.Approve(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already been reviewed")
}

func TestManagementHandlerRejectWithoutNotes(t *testing.T) {
	repo := &resourceRepoMock{items: map[string]*models.Resource{
		"r1": {ID: "r1", Status: models.StatusPending, UploadedBy: "student-1"},
	}}
	handler := newManagementHandler(t, repo)

	w := httptest.NewRecorder()
	c := reviewContext(t, w, models.RoleResourceManager, "r1", models.ReviewRequest{})

	handler.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.StatusPending, repo.items["r1"].Status)
}

func TestManagementHandlerApproveMissing(t *testing.T) {
	handler := newManagementHandler(t, &resourceRepoMock{})

	w := httptest.NewRecorder()
	c := reviewContext(t, w, models.RoleResourceManager, "nope", models.ReviewRequest{})

	handler.Approve(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
