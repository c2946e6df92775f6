package models

import (
	"time"

	"github.com/lib/pq"
)

// ResourceStatus tracks a submission through the review workflow.
type ResourceStatus string

const (
	StatusPending  ResourceStatus = "pending"
	StatusApproved ResourceStatus = "approved"
	StatusRejected ResourceStatus = "rejected"
)

// ResourceCategory classifies an approved learning resource.
type ResourceCategory string

const (
	CategoryLecture    ResourceCategory = "lecture"
	CategoryAssignment ResourceCategory = "assignment"
	CategoryTutorial   ResourceCategory = "tutorial"
	CategoryReference  ResourceCategory = "reference"
	CategoryOther      ResourceCategory = "other"
)

// ValidCategory reports whether the given value is a known category.
func ValidCategory(c ResourceCategory) bool {
	switch c {
	case CategoryLecture, CategoryAssignment, CategoryTutorial, CategoryReference, CategoryOther:
		return true
	}
	return false
}

// Resource is a reviewable learning-resource submission.
//
// Status starts at pending for every record entering the workflow and is
// mutated exactly once, by approve or reject. The module name is stored as a
// denormalized string; ModuleID is an optional reference kept for listings.
type Resource struct {
	ID            string           `db:"id" json:"id"`
	Title         string           `db:"title" json:"title"`
	Description   string           `db:"description" json:"description"`
	FilePath      string           `db:"file_path" json:"fileUrl"`
	FileName      string           `db:"file_name" json:"fileName"`
	FileSize      int64            `db:"file_size" json:"fileSize"`
	MimeType      string           `db:"mime_type" json:"mimeType"`
	Year          int              `db:"year" json:"year"`
	Semester      int              `db:"semester" json:"semester"`
	Module        string           `db:"module" json:"module"`
	ModuleID      *string          `db:"module_id" json:"moduleId,omitempty"`
	Category      ResourceCategory `db:"category" json:"category"`
	UploadedBy    string           `db:"uploaded_by" json:"uploadedBy"`
	Status        ResourceStatus   `db:"status" json:"status"`
	ReviewedBy    *string          `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewDate    *time.Time       `db:"review_date" json:"reviewDate,omitempty"`
	ReviewNotes   *string          `db:"review_notes" json:"reviewNotes,omitempty"`
	DownloadCount int              `db:"download_count" json:"downloadCount"`
	Tags          pq.StringArray   `db:"tags" json:"tags"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// ResourceFilter captures the composable listing predicates. Zero values mean
// "no constraint"; Category "all" is treated as a wildcard.
type ResourceFilter struct {
	Status     ResourceStatus
	Category   string
	Year       int
	Semester   int
	Module     string
	Search     string
	UploadedBy string
	Page       int
	Limit      int
}

// ResourceStats aggregates per-status resource counts.
type ResourceStats struct {
	Pending  int `db:"pending" json:"pending"`
	Approved int `db:"approved" json:"approved"`
	Rejected int `db:"rejected" json:"rejected"`
	Total    int `db:"total" json:"total"`
}
