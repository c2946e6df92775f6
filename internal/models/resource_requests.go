package models

// SubmitResourceRequest carries the metadata for a new submission. The file
// itself travels alongside as a multipart part.
type SubmitResourceRequest struct {
	Title       string   `form:"title" json:"title" validate:"required,min=3,max=200"`
	Description string   `form:"description" json:"description" validate:"required,min=3,max=1000"`
	Year        int      `form:"year" json:"year" validate:"required,min=1,max=4"`
	Semester    int      `form:"semester" json:"semester" validate:"required,min=1,max=2"`
	Module      string   `form:"module" json:"module" validate:"required"`
	Category    string   `form:"category" json:"category" validate:"omitempty"`
	// Empty or whitespace-only tags are dropped during normalization, so
	// the per-tag rule only bounds length.
	Tags []string `form:"tags" json:"tags" validate:"omitempty,dive,max=50"`
}

// UpdateResourceRequest lists the fields an owner or manager may change after
// submission. Status is deliberately absent.
type UpdateResourceRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string  `json:"description" validate:"omitempty,min=3,max=1000"`
	Category    *string  `json:"category" validate:"omitempty"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=50"`
}

// ReviewRequest carries the reviewer's verdict payload.
type ReviewRequest struct {
	Category    string `json:"category" validate:"omitempty"`
	ReviewNotes string `json:"reviewNotes" validate:"omitempty,max=500"`
}
