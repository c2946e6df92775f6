package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnbridge/learnbridge-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func resourceRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "description", "file_path", "file_name", "file_size", "mime_type",
		"year", "semester", "module", "module_id", "category", "uploaded_by", "status",
		"reviewed_by", "review_date", "review_notes", "download_count", "tags", "created_at", "updated_at",
	}).AddRow(
		"r1", "Calculus Notes", "Chapter 1", "abc-notes.pdf", "notes.pdf", int64(2048), "application/pdf",
		2, 1, "Mathematics II", nil, "lecture", "student-1", "approved",
		nil, nil, nil, 4, pq.StringArray{"calculus"}, now, now,
	)
}

func TestResourceRepositoryListNoFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM resources WHERE 1=1 ORDER BY created_at DESC LIMIT 10 OFFSET 0`).
		WillReturnRows(resourceRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM resources WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ResourceFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Calculus Notes", list[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListConjunctiveFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM resources WHERE 1=1 AND status = \$1 AND category = \$2 AND year = \$3 AND semester = \$4 AND module = \$5 AND uploaded_by = \$6 ORDER BY created_at DESC LIMIT 10 OFFSET 10`).
		WithArgs("approved", "lecture", 2, 1, "Mathematics II", "student-1").
		WillReturnRows(resourceRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM resources WHERE 1=1 AND status = \$1 AND category = \$2 AND year = \$3 AND semester = \$4 AND module = \$5 AND uploaded_by = \$6`).
		WithArgs("approved", "lecture", 2, 1, "Mathematics II", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.ResourceFilter{
		Status:     models.StatusApproved,
		Category:   "lecture",
		Year:       2,
		Semester:   1,
		Module:     "Mathematics II",
		UploadedBy: "student-1",
		Page:       2,
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListCategoryAllIsWildcard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM resources WHERE 1=1 ORDER BY created_at DESC LIMIT 10 OFFSET 0`).
		WillReturnRows(resourceRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM resources WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.ResourceFilter{Category: "all"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListSearchSpansTitleDescriptionTags(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM resources WHERE 1=1 AND \(title ILIKE \$1 OR description ILIKE \$1 OR EXISTS \(SELECT 1 FROM unnest\(tags\) AS tag WHERE tag ILIKE \$1\)\) ORDER BY created_at DESC LIMIT 10 OFFSET 0`).
		WithArgs("%calculus%").
		WillReturnRows(resourceRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM resources WHERE 1=1 AND \(title ILIKE \$1`).
		WithArgs("%calculus%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.ResourceFilter{Search: "calculus"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec("INSERT INTO resources").
		WillReturnResult(sqlmock.NewResult(1, 1))

	resource := &models.Resource{
		Title:       "Calculus Notes",
		Description: "Chapter 1",
		FilePath:    "abc-notes.pdf",
		FileName:    "notes.pdf",
		FileSize:    2048,
		MimeType:    "application/pdf",
		Year:        2,
		Semester:    1,
		Module:      "Mathematics II",
		Category:    models.CategoryOther,
		UploadedBy:  "student-1",
		Status:      models.StatusPending,
		Tags:        pq.StringArray{"calculus"},
	}
	require.NoError(t, repo.Create(context.Background(), resource))
	assert.NotEmpty(t, resource.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryMarkReviewedPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec(`UPDATE resources\s+SET status = \$2, reviewed_by = \$3, review_date = \$4, review_notes = \$5,\s+category = COALESCE\(NULLIF\(\$6, ''\), category\), updated_at = \$4\s+WHERE id = \$1 AND status = \$7`).
		WithArgs("r1", "approved", "mgr-1", sqlmock.AnyArg(), "", "lecture", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkReviewed(context.Background(), "r1", models.StatusApproved, "mgr-1", "", models.CategoryLecture)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryMarkReviewedAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	// Zero affected rows means the conditional update lost: not pending anymore.
	mock.ExpectExec(`UPDATE resources\s+SET status = \$2`).
		WithArgs("r1", "rejected", "mgr-2", sqlmock.AnyArg(), "late", "", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkReviewed(context.Background(), "r1", models.StatusRejected, "mgr-2", "late", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryIncrementDownloadCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resources SET download_count = download_count + 1, updated_at = $2 WHERE id = $1")).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementDownloadCount(context.Background(), "r1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resources SET download_count = download_count + 1, updated_at = $2 WHERE id = $1")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementDownloadCount(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resources WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryCountByModuleName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM resources WHERE module = $1")).
		WithArgs("Mathematics II").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByModuleName(context.Background(), "Mathematics II")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\) FILTER \(WHERE status = 'pending'\) AS pending`).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "approved", "rejected", "total"}).AddRow(2, 5, 1, 8))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 5, stats.Approved)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 8, stats.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
