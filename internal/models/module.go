package models

import "time"

// Module represents an academic module that groups resources by year and semester.
type Module struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      int       `db:"year" json:"year"`
	Semester  int       `db:"semester" json:"semester"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ModuleRequest carries the create/update payload for a module.
type ModuleRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Year     int    `json:"year" validate:"required,min=1,max=4"`
	Semester int    `json:"semester" validate:"required,min=1,max=2"`
}

// ModuleFilter encapsulates allowed search parameters for listing modules.
type ModuleFilter struct {
	Year     int
	Semester int
	Page     int
	Limit    int
}
