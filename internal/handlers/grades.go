// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"codeberg.org/coursemix/coursemix/internal/appcontext"
	"codeberg.org/coursemix/coursemix/internal/gradecipher"
	"codeberg.org/coursemix/coursemix/internal/services/grades"
	"github.com/labstack/echo/v4"
)

// GradeHandlers serves the grade records of the logged-in user.
type GradeHandlers struct {
	grades *grades.Service
}

// NewGrades creates a new GradeHandlers instance.
func NewGrades(svc *grades.Service) *GradeHandlers {
	return &GradeHandlers{grades: svc}
}

// GradeRequest is the request body for creating a grade record.
type GradeRequest struct {
	CourseCode string `json:"course_code" validate:"required,max=32"`
	Grade      string `json:"grade" validate:"max=16"`
	Term       string `json:"term" validate:"required,max=32"`
	Year       int    `json:"year" validate:"required,min=1900,max=2200"`
	Status     string `json:"status" validate:"omitempty,oneof=in-progress completed"`
}

func (r *GradeRequest) normalize() {
	r.CourseCode = strings.TrimSpace(r.CourseCode)
	r.Grade = strings.TrimSpace(r.Grade)
	r.Term = strings.TrimSpace(r.Term)
}

// UpdateGradeRequest is the request body for replacing a grade.
type UpdateGradeRequest struct {
	Grade  string `json:"grade" validate:"max=16"`
	Status string `json:"status" validate:"omitempty,oneof=in-progress completed"`
}

func (r *UpdateGradeRequest) normalize() { r.Grade = strings.TrimSpace(r.Grade) }

func gradeFailure(c echo.Context, err error) error {
	var prereq *grades.PrerequisiteError
	switch {
	case errors.As(err, &prereq):
		if prereq.MinGrade == nil {
			return FailData(c, http.StatusBadRequest, "error_prerequisite_missing", map[string]any{
				"Prerequisite": prereq.Prerequisite,
				"Course":       prereq.Course,
			})
		}
		return FailData(c, http.StatusBadRequest, "error_prerequisite_grade", map[string]any{
			"Prerequisite": prereq.Prerequisite,
			"MinGrade":     strconv.FormatFloat(*prereq.MinGrade, 'f', -1, 64),
		})
	case errors.Is(err, grades.ErrInvalidInput):
		return BadRequest(c, "error_grade_invalid")
	case errors.Is(err, grades.ErrInvalidStatus):
		return BadRequest(c, "error_grade_status")
	case errors.Is(err, grades.ErrNotFound):
		return Fail(c, http.StatusNotFound, "error_grade_not_found")
	case errors.Is(err, grades.ErrDuplicate):
		return Fail(c, http.StatusConflict, "error_grade_duplicate")
	case errors.Is(err, gradecipher.ErrConfiguration):
		return Fail(c, http.StatusInternalServerError, "error_configuration")
	default:
		return InternalServerError(c, "grade_request_failed", err)
	}
}

func gradeID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Create adds a grade record.
func (h *GradeHandlers) Create(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return Unauthorized(c)
	}

	var req GradeRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_grade_invalid")
	}

	g, err := h.grades.Add(c.Request().Context(), user.ID, grades.Input{
		CourseCode: req.CourseCode,
		Grade:      req.Grade,
		Term:       req.Term,
		Year:       req.Year,
		Status:     req.Status,
	})
	if err != nil {
		return gradeFailure(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"grade":   g,
	})
}

// Update replaces the grade of a record.
func (h *GradeHandlers) Update(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return Unauthorized(c)
	}

	id, ok := gradeID(c)
	if !ok {
		return Fail(c, http.StatusNotFound, "error_grade_not_found")
	}

	var req UpdateGradeRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_grade_status")
	}

	g, err := h.grades.Update(c.Request().Context(), user.ID, id, req.Grade, req.Status)
	if err != nil {
		return gradeFailure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"grade":   g,
	})
}

// Delete removes a record.
func (h *GradeHandlers) Delete(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return Unauthorized(c)
	}

	id, ok := gradeID(c)
	if !ok {
		return Fail(c, http.StatusNotFound, "error_grade_not_found")
	}

	if err := h.grades.Delete(c.Request().Context(), user.ID, id); err != nil {
		return gradeFailure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_grade_deleted"),
	})
}

// List returns all records of the user with grades decrypted.
func (h *GradeHandlers) List(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return Unauthorized(c)
	}

	list, err := h.grades.List(c.Request().Context(), user.ID)
	if err != nil {
		return gradeFailure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"grades":  list,
	})
}

// Summary returns the GPA and standing of the user.
func (h *GradeHandlers) Summary(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return Unauthorized(c)
	}

	summary, err := h.grades.Summarize(c.Request().Context(), user.ID)
	if err != nil {
		return gradeFailure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}
