package grader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Marks a rubric row that declares a graded test
const TestMarker = "@test"

// Name of the rubric file in the student's working tree
const RubricFile = "grading.csv"

var ErrMalformedRubric = errors.New("malformed rubric")

type Row struct {
	// Nil for an ungraded, informational entry
	Points  *float64
	Package string
	Class   string
	Test    string
}

func (r Row) Graded() bool {
	return r.Points != nil
}

type Rubric struct {
	Rows []Row
}

// Reads a rubric sheet. Only rows starting with `@test` are kept.
func ParseRubric(r io.Reader) (*Rubric, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	rubric := &Rubric{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rubric, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRubric, err)
		}

		if len(record) == 0 || strings.TrimSpace(record[0]) != TestMarker {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) < 4 {
			return nil, fmt.Errorf("%w: line %d: want package, class, test", ErrMalformedRubric, line)
		}

		row := Row{
			Package: strings.TrimSpace(record[1]),
			Class:   strings.TrimSpace(record[2]),
			Test:    strings.TrimSpace(record[3]),
		}
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			points, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
			if err != nil || points < 0 || math.IsNaN(points) || math.IsInf(points, 0) {
				return nil, fmt.Errorf("%w: line %d: bad points %q", ErrMalformedRubric, line, record[4])
			}
			row.Points = &points
		}
		rubric.Rows = append(rubric.Rows, row)
	}
}
