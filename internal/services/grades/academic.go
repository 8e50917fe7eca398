// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package grades

import (
	"math"
	"strconv"
	"strings"
)

// GoodStandingGPA is the lowest GPA that counts as good academic standing.
const GoodStandingGPA = 2.0

var gradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"D-": 0.7,
	"F":  0.0,
}

var letterThresholds = []struct {
	min    float64
	letter string
}{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{77, "B+"},
	{73, "B"},
	{70, "B-"},
	{67, "C+"},
	{63, "C"},
	{60, "C-"},
	{57, "D+"},
	{53, "D"},
	{50, "D-"},
}

// CalculateGPA averages letter grades on a 4.0 scale, rounded to two
// decimals. Unknown grades are ignored; no known grades yields 0.
func CalculateGPA(letters []string) float64 {
	var total float64
	var counted int
	for _, letter := range letters {
		points, ok := gradePoints[letter]
		if !ok {
			continue
		}
		total += points
		counted++
	}
	if counted == 0 {
		return 0
	}
	return math.Round(total/float64(counted)*100) / 100
}

// NumericToLetter converts a percentage to a letter grade.
func NumericToLetter(percent float64) string {
	for _, t := range letterThresholds {
		if percent >= t.min {
			return t.letter
		}
	}
	return "F"
}

// IsGoodStanding reports whether gpa meets the good standing threshold.
func IsGoodStanding(gpa float64) bool {
	return gpa >= GoodStandingGPA
}

// LetterGrade maps a stored grade to a letter. Numeric grades are treated
// as percentages; letters are upper-cased. The second result is false for
// values that are neither.
func LetterGrade(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return NumericToLetter(n), true
	}
	letter := strings.ToUpper(value)
	_, ok := gradePoints[letter]
	return letter, ok
}
