// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package grades manages course records whose grade values are stored
// encrypted per user.
package grades

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"codeberg.org/coursemix/coursemix/internal/gradecipher"
	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/repository"
)

var (
	ErrNotFound          = errors.New("grade not found")
	ErrDuplicate         = errors.New("grade already recorded for course")
	ErrInvalidInput      = errors.New("course code, term and year are required")
	ErrInvalidStatus     = errors.New("invalid grade status")
	ErrPrerequisiteUnmet = errors.New("prerequisite requirement not met")
)

// PrerequisiteError describes the first unmet prerequisite of a course.
type PrerequisiteError struct {
	Course       string
	Prerequisite string
	MinGrade     *float64
}

func (e *PrerequisiteError) Error() string {
	if e.MinGrade == nil {
		return fmt.Sprintf("missing prerequisite: %s must be completed before %s", e.Prerequisite, e.Course)
	}
	return fmt.Sprintf("grade requirement not met: %s requires a minimum grade of %g", e.Prerequisite, *e.MinGrade)
}

func (e *PrerequisiteError) Is(target error) bool {
	return target == ErrPrerequisiteUnmet
}

// Input carries the user-supplied fields of a grade record.
type Input struct {
	CourseCode string
	Grade      string
	Term       string
	Year       int
	Status     string
}

// Grade is a decrypted grade record. Unreadable is set when the stored
// value could not be decrypted; Grade is then empty.
type Grade struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64     `json:"id"`
	CourseCode string    `json:"course_code"`
	Grade      string    `json:"grade"`
	Unreadable bool      `json:"unreadable,omitempty"`
	Term       string    `json:"term"`
	Year       int       `json:"year"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary aggregates the completed records of a user. Unreadable records
// count as completed but do not enter the GPA.
type Summary struct {
	GPA          float64 `json:"gpa"`
	GoodStanding bool    `json:"good_standing"`
	Completed    int     `json:"completed"`
	InProgress   int     `json:"in_progress"`
	Unreadable   int     `json:"unreadable"`
}

type Service struct {
	repo   *repository.Repository
	cipher *gradecipher.Cipher
	now    func() time.Time
}

func NewService(repo *repository.Repository, cipher *gradecipher.Cipher) *Service {
	return &Service{repo: repo, cipher: cipher, now: time.Now}
}

// Add checks prerequisites and stores a new record with its grade encrypted.
func (s *Service) Add(ctx context.Context, userID string, in Input) (*Grade, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	if in.CourseCode == "" || in.Term == "" || in.Year <= 0 {
		return nil, ErrInvalidInput
	}

	if err := s.CheckPrerequisites(ctx, userID, in.CourseCode); err != nil {
		return nil, err
	}

	sealed, err := s.seal(in.Grade, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &models.StudentGrade{
		UserID:     userID,
		CourseCode: in.CourseCode,
		Grade:      sealed,
		Term:       in.Term,
		Year:       in.Year,
		Status:     in.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateGrade(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateGrade) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to store grade: %w", err)
	}

	slog.Info("grade_added", "user_id", userID, "course", in.CourseCode, "status", in.Status)
	return view(record, in.Grade), nil
}

// Update replaces the grade and status of an existing record.
func (s *Service) Update(ctx context.Context, userID string, id int64, grade, status string) (*Grade, error) {
	in, err := normalize(Input{Grade: grade, Status: status})
	if err != nil {
		return nil, err
	}

	sealed, err := s.seal(in.Grade, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateGrade(ctx, userID, id, sealed, in.Status, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update grade: %w", err)
	}

	record, err := s.repo.GetGrade(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload grade: %w", err)
	}
	return view(record, in.Grade), nil
}

// Delete removes a record owned by userID.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.repo.DeleteGrade(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete grade: %w", err)
	}
	return nil
}

// List returns every record of userID with grades decrypted. A record that
// fails to decrypt is returned flagged as unreadable.
func (s *Service) List(ctx context.Context, userID string) ([]Grade, error) {
	records, err := s.repo.ListGrades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}

	grades := make([]Grade, 0, len(records))
	for i := range records {
		plain, err := s.open(records[i].Grade, userID)
		if errors.Is(err, gradecipher.ErrConfiguration) {
			return nil, err
		}
		g := view(&records[i], plain)
		if err != nil {
			slog.ErrorContext(ctx, "grade_decrypt_failed", "user_id", userID, "grade_id", records[i].ID, "error", err)
			g.Unreadable = true
		}
		grades = append(grades, *g)
	}
	return grades, nil
}

// Summarize computes the GPA over completed records.
func (s *Service) Summarize(ctx context.Context, userID string) (*Summary, error) {
	grades, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var summary Summary
	var letters []string
	for _, g := range grades {
		if g.Status != models.StatusCompleted {
			summary.InProgress++
			continue
		}
		summary.Completed++
		if g.Unreadable {
			summary.Unreadable++
			continue
		}
		if letter, ok := LetterGrade(g.Grade); ok {
			letters = append(letters, letter)
		}
	}
	summary.GPA = CalculateGPA(letters)
	summary.GoodStanding = IsGoodStanding(summary.GPA)
	return &summary, nil
}

// CheckPrerequisites verifies that userID completed every prerequisite of
// course with at least the required minimum grade.
func (s *Service) CheckPrerequisites(ctx context.Context, userID, course string) error {
	prereqs, err := s.repo.ListPrerequisites(ctx, course)
	if err != nil {
		return fmt.Errorf("failed to check prerequisites: %w", err)
	}

	for _, p := range prereqs {
		unmet := &PrerequisiteError{Course: course, Prerequisite: p.PrerequisiteCode}
		if p.MinGrade.Valid {
			unmet.MinGrade = &p.MinGrade.Float64
		}

		record, err := s.repo.GetCompletedGrade(ctx, userID, p.PrerequisiteCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return unmet
			}
			return fmt.Errorf("failed to check prerequisite %s: %w", p.PrerequisiteCode, err)
		}

		if !p.MinGrade.Valid {
			continue
		}

		plain, err := s.open(record.Grade, userID)
		if err != nil {
			return fmt.Errorf("failed to verify prerequisite %s: %w", p.PrerequisiteCode, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(plain), 64)
		if err != nil || value < p.MinGrade.Float64 {
			return unmet
		}
	}
	return nil
}

// seal encrypts a non-empty grade. An empty grade is stored as is.
func (s *Service) seal(grade, userID string) (string, error) {
	if grade == "" {
		return "", nil
	}
	sealed, err := s.cipher.Encrypt(grade, userID)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt grade: %w", err)
	}
	return sealed, nil
}

// open decrypts a stored grade. Values without a separator were written
// before encryption was introduced and are returned unchanged.
func (s *Service) open(stored, userID string) (string, error) {
	if !strings.Contains(stored, ":") {
		return stored, nil
	}
	return s.cipher.Decrypt(stored, userID)
}

func normalize(in Input) (Input, error) {
	in.CourseCode = strings.ToUpper(strings.TrimSpace(in.CourseCode))
	in.Grade = strings.TrimSpace(in.Grade)
	in.Term = strings.TrimSpace(in.Term)

	switch {
	case in.Grade != "":
		in.Status = models.StatusCompleted
	case in.Status == "":
		in.Status = models.StatusInProgress
	case in.Status != models.StatusInProgress && in.Status != models.StatusCompleted:
		return in, ErrInvalidStatus
	}
	return in, nil
}

func view(record *models.StudentGrade, plain string) *Grade {
	return &Grade{
		ID:         record.ID,
		CourseCode: record.CourseCode,
		Grade:      plain,
		Term:       record.Term,
		Year:       record.Year,
		Status:     record.Status,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
