// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// Grade statuses.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// StudentGrade is a course record. Grade holds the encrypted value in
// iv:ciphertext:tag form and is replaced as a whole on update.
type StudentGrade struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64     `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseCode string    `db:"course_code" json:"course_code"`
	Grade      string    `db:"grade" json:"-"`
	Term       string    `db:"term" json:"term"`
	Year       int       `db:"year" json:"year"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CoursePrerequisite links a course to a course that must be completed first.
type CoursePrerequisite struct { //nolint:govet // fieldalignment: readability over optimization
	ID               int64           `db:"id" json:"id"`
	CourseCode       string          `db:"course_code" json:"course_code"`
	PrerequisiteCode string          `db:"prerequisite_code" json:"prerequisite_code"`
	MinGrade         sql.NullFloat64 `db:"min_grade" json:"-"`
}
