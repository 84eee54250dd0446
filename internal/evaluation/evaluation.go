// Package evaluation reads rubric evaluation exports into per-student
// evaluation records.
package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pavelanni/prescriber/internal/model"
)

var (
	// ErrSourceUnavailable is returned when the table cannot be opened or has no header.
	ErrSourceUnavailable = errors.New("evaluation source unavailable")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
)

// Mode selects how rubric columns bind to concepts.
type Mode string

const (
	// ModeAuto picks ModeLabeled when any rubric header is concept-tagged.
	ModeAuto Mode = "auto"
	// ModePositional binds the n-th concept to the n-th rubric column.
	ModePositional Mode = "positional"
	// ModeLabeled binds columns by the identifier in their "Concept <id>: ..." header.
	ModeLabeled Mode = "labeled"
)

// ParseMode validates a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModePositional, ModeLabeled:
		return m, nil
	}
	return "", fmt.Errorf("unknown evaluation mode %q", s)
}

// RowError describes a data row that was skipped.
type RowError struct {
	Line int
	Row  []string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Evaluations is the parsed evaluation export.
type Evaluations struct {
	Mode    Mode
	Labels  []Label
	Skipped []*RowError

	students map[string]*model.EvaluationRecord
	order    []string
}

func newEvaluations(mode Mode) *Evaluations {
	return &Evaluations{Mode: mode, students: make(map[string]*model.EvaluationRecord)}
}

// Get returns the record for sid. The identifier is normalized first.
func (e *Evaluations) Get(sid string) (*model.EvaluationRecord, bool) {
	r, ok := e.students[model.NormalizeSID(sid)]
	return r, ok
}

// SIDs returns normalized identifiers in order of first appearance.
func (e *Evaluations) SIDs() []string {
	return append([]string(nil), e.order...)
}

// Len returns the number of distinct students.
func (e *Evaluations) Len() int { return len(e.order) }

// ParseFile opens path and parses it. When the file cannot be read it returns
// an empty result together with an error wrapping ErrSourceUnavailable.
func ParseFile(path string, mode Mode) (*Evaluations, error) {
	f, err := os.Open(path)
	if err != nil {
		return newEvaluations(mode), fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()
	return Parse(f, mode)
}

// Parse reads an evaluation table. Invalid rows are skipped, logged and
// collected in Skipped. A missing required header yields an empty result
// and an error.
func Parse(r io.Reader, mode Mode) (*Evaluations, error) {
	if mode == "" {
		mode = ModeAuto
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty table")
		}
		return newEvaluations(mode), fmt.Errorf("%w: read header: %w", ErrSourceUnavailable, err)
	}
	sch, err := resolveSchema(header)
	if err != nil {
		return newEvaluations(mode), err
	}

	switch {
	case mode == ModeAuto && len(sch.labels) > 0:
		mode = ModeLabeled
	case mode == ModeAuto:
		mode = ModePositional
	case mode == ModeLabeled && len(sch.labels) == 0:
		return newEvaluations(mode), fmt.Errorf("%w: no concept-labeled rubric columns", ErrMissingColumn)
	}

	ev := newEvaluations(mode)
	if mode == ModeLabeled {
		for _, cl := range sch.labels {
			ev.Labels = append(ev.Labels, cl.label)
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return ev, fmt.Errorf("read evaluation table: %w", err)
			}
			ev.skip(pe.Line, row, err)
			continue
		}
		if isNonData(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := sch.record(row, mode == ModeLabeled)
		if err != nil {
			ev.skip(line, row, err)
			continue
		}
		ev.put(rec)
	}

	slog.Debug("parsed evaluation table",
		"mode", ev.Mode,
		"students", ev.Len(),
		"skipped", len(ev.Skipped),
		"labels", len(ev.Labels),
	)
	return ev, nil
}

func (e *Evaluations) skip(line int, row []string, err error) {
	re := &RowError{Line: line, Row: row, Err: err}
	e.Skipped = append(e.Skipped, re)
	slog.Warn("skipping invalid evaluation row", "line", line, "error", err, "row", strings.Join(row, ","))
}

// put stores rec. A repeated identifier replaces the earlier record but keeps its position.
func (e *Evaluations) put(rec *model.EvaluationRecord) {
	sid := rec.Student.SID
	if _, seen := e.students[sid]; seen {
		slog.Debug("duplicate evaluation row, keeping the last one", "sid", sid)
	} else {
		e.order = append(e.order, sid)
	}
	e.students[sid] = rec
}

func (s *schema) record(row []string, labeled bool) (*model.EvaluationRecord, error) {
	if len(row) < s.width() {
		return nil, fmt.Errorf("row has %d fields, want at least %d", len(row), s.width())
	}
	sid := model.NormalizeSID(row[s.sid])
	if sid == "" {
		return nil, fmt.Errorf("missing %s", ColSID)
	}

	rec := &model.EvaluationRecord{
		Student: model.StudentIdentity{
			FirstName: strings.TrimSpace(row[s.firstName]),
			LastName:  strings.TrimSpace(row[s.lastName]),
			SID:       sid,
		},
		Flags:   make([]bool, 0, s.blockEnd-s.blockStart),
		Labeled: labeled,
	}
	for i := s.blockStart; i < s.blockEnd; i++ {
		rec.Flags = append(rec.Flags, parseFlag(row[i]))
	}
	if labeled {
		rec.ConceptFlags = make(map[string][]bool, len(s.labels))
		for _, cl := range s.labels {
			id := cl.label.ID
			rec.ConceptFlags[id] = append(rec.ConceptFlags[id], parseFlag(row[cl.column]))
		}
	}
	return rec, nil
}
