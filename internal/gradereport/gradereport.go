// Package gradereport reads a per-problem grade report and derives problem
// statuses from it.
package gradereport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pavelanni/prescriber/internal/model"
)

var (
	// ErrSourceUnavailable is returned when the report cannot be opened or has no header.
	ErrSourceUnavailable = errors.New("grade report unavailable")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
)

// Report is a parsed grade report. Lookups are safe for concurrent use.
type Report struct {
	records map[string]*model.GradeReportRecord
	order   []string
	columns map[string]bool

	// missing column labels already warned about
	warned sync.Map
}

func newReport() *Report {
	return &Report{
		records: make(map[string]*model.GradeReportRecord),
		columns: make(map[string]bool),
	}
}

// ParseFile opens and parses path. When the file cannot be read it returns an
// empty report together with an error wrapping ErrSourceUnavailable.
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return newReport(), fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a grade report keyed by "SID".
func Parse(r io.Reader) (*Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty table")
		}
		return newReport(), fmt.Errorf("%w: read header: %w", ErrSourceUnavailable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var cols [3]int
	for i, name := range []string{"First Name", "Last Name", "SID"} {
		c, ok := idx[name]
		if !ok {
			return newReport(), fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		cols[i] = c
	}
	first, last, sidCol := cols[0], cols[1], cols[2]

	rep := newReport()
	for _, h := range header {
		rep.columns[h] = true
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return rep, fmt.Errorf("read grade report: %w", err)
			}
			slog.Warn("skipping invalid grade report row", "line", pe.Line, "error", err)
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(row) <= max(first, last, sidCol) {
			slog.Warn("skipping invalid grade report row", "line", line, "error", "too few fields")
			continue
		}
		sid := model.NormalizeSID(row[sidCol])
		if sid == "" {
			slog.Warn("skipping invalid grade report row", "line", line, "error", "missing SID")
			continue
		}
		rec := &model.GradeReportRecord{
			Student: model.StudentIdentity{
				FirstName: strings.TrimSpace(row[first]),
				LastName:  strings.TrimSpace(row[last]),
				SID:       sid,
			},
			Scores: make(map[string]string, len(header)),
		}
		for i, h := range header {
			if i < len(row) {
				rec.Scores[h] = row[i]
			}
		}
		if _, seen := rep.records[sid]; !seen {
			rep.order = append(rep.order, sid)
		}
		rep.records[sid] = rec
	}

	slog.Debug("parsed grade report", "students", len(rep.order), "columns", len(header))
	return rep, nil
}

// Students returns the report roster in file order.
func (r *Report) Students() []model.StudentIdentity {
	out := make([]model.StudentIdentity, 0, len(r.order))
	for _, sid := range r.order {
		out = append(out, r.records[sid].Student)
	}
	return out
}

// Len returns the number of students in the report.
func (r *Report) Len() int { return len(r.order) }

// Student returns the identity recorded for sid.
func (r *Report) Student(sid string) (model.StudentIdentity, bool) {
	rec, ok := r.records[model.NormalizeSID(sid)]
	if !ok {
		return model.StudentIdentity{}, false
	}
	return rec.Student, true
}

// DisplayName returns "First Last" for sid.
func (r *Report) DisplayName(sid string) (string, bool) {
	s, ok := r.Student(sid)
	return s.FullName(), ok
}

// Status derives the grade status of problem on quiz for sid. ok is false when
// the student or the problem column is not in the report; a missing column is
// logged once per label.
func (r *Report) Status(sid, quiz, problem string) (model.Status, bool) {
	label := ColumnLabel(quiz, problem)
	if !r.columns[label] {
		if _, already := r.warned.LoadOrStore(label, struct{}{}); !already {
			slog.Warn("grade report has no column for problem", "column", label, "quiz", quiz, "problem", problem)
		}
		return model.StatusRequired, false
	}
	rec, ok := r.records[model.NormalizeSID(sid)]
	if !ok {
		return model.StatusRequired, false
	}
	return DeriveStatus(rec.Scores[label]), true
}

// ColumnLabel builds the report column name for a problem: "Recitation <n> [<PROBLEM>]",
// where n is the last word of the quiz name.
func ColumnLabel(quiz, problem string) string {
	suffix := ""
	if f := strings.Fields(quiz); len(f) > 0 {
		suffix = f[len(f)-1]
	}
	return fmt.Sprintf("Recitation %s [%s]", suffix, strings.ToUpper(strings.TrimSpace(problem)))
}

// DeriveStatus maps a raw score cell to a status: empty is S, zero is N,
// positive is Y and anything else, infinities included, is ?.
func DeriveStatus(raw string) model.Status {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.StatusSubmitted
	}
	v, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil, math.IsInf(v, 0):
		return model.StatusUnknown
	case v == 0:
		return model.StatusNotEarned
	case v > 0:
		return model.StatusEarned
	}
	return model.StatusUnknown
}
