// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"codeberg.org/coursemix/coursemix/internal/models"
)

// ErrDuplicateGrade is returned when the user already has a record for the course.
var ErrDuplicateGrade = errors.New("grade already recorded for course")

// CreateGrade inserts a grade record and sets its ID.
func (r *Repository) CreateGrade(ctx context.Context, g *models.StudentGrade) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO student_grades (user_id, course_code, grade, term, year, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.CourseCode, g.Grade, g.Term, g.Year, g.Status, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateGrade
		}
		return err
	}
	g.ID, err = res.LastInsertId()
	return err
}

// GetGrade returns a grade owned by userID.
func (r *Repository) GetGrade(ctx context.Context, userID string, id int64) (*models.StudentGrade, error) {
	var g models.StudentGrade
	err := r.db.GetContext(ctx, &g, `SELECT * FROM student_grades WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &g, nil
}

// GetCompletedGrade returns the completed record for a course, if any.
func (r *Repository) GetCompletedGrade(ctx context.Context, userID, courseCode string) (*models.StudentGrade, error) {
	var g models.StudentGrade
	err := r.db.GetContext(ctx, &g,
		`SELECT * FROM student_grades WHERE user_id = ? AND course_code = ? AND status = ?`,
		userID, courseCode, models.StatusCompleted)
	if err != nil {
		return nil, wrapError(err)
	}
	return &g, nil
}

// ListGrades returns all grades for a user ordered by year, term and course.
func (r *Repository) ListGrades(ctx context.Context, userID string) ([]models.StudentGrade, error) {
	var grades []models.StudentGrade
	err := r.db.SelectContext(ctx, &grades,
		`SELECT * FROM student_grades WHERE user_id = ? ORDER BY year, term, course_code`, userID)
	if err != nil {
		return nil, err
	}
	return grades, nil
}

// UpdateGrade replaces the encrypted grade and status of a record owned by userID.
func (r *Repository) UpdateGrade(ctx context.Context, userID string, id int64, grade, status string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE student_grades SET grade = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		grade, status, now.UTC(), id, userID)
	return requireAffected(res, err)
}

// DeleteGrade removes a record owned by userID.
func (r *Repository) DeleteGrade(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_grades WHERE id = ? AND user_id = ?`, id, userID)
	return requireAffected(res, err)
}

// AddPrerequisite registers prerequisite as required before course.
// A nil minGrade only requires completion.
func (r *Repository) AddPrerequisite(ctx context.Context, course, prerequisite string, minGrade *float64) error {
	var threshold sql.NullFloat64
	if minGrade != nil {
		threshold = sql.NullFloat64{Float64: *minGrade, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_prerequisites (course_code, prerequisite_code, min_grade) VALUES (?, ?, ?)
		 ON CONFLICT (course_code, prerequisite_code) DO UPDATE SET min_grade = excluded.min_grade`,
		course, prerequisite, threshold)
	return err
}

// ListPrerequisites returns the prerequisites of a course.
func (r *Repository) ListPrerequisites(ctx context.Context, course string) ([]models.CoursePrerequisite, error) {
	var prereqs []models.CoursePrerequisite
	err := r.db.SelectContext(ctx, &prereqs,
		`SELECT * FROM course_prerequisites WHERE course_code = ? ORDER BY prerequisite_code`, course)
	if err != nil {
		return nil, err
	}
	return prereqs, nil
}

func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
