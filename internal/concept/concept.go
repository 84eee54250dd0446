// Package concept turns caller-declared concept specifications into the
// canonical grouping shared by every prescription of a run.
package concept

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/prescriber/internal/model"
)

// ErrConfiguration marks a malformed concept specification.
var ErrConfiguration = errors.New("configuration error")

// Grouping is the validated, ordered list of concepts. It is immutable and
// safe to share between goroutines.
type Grouping struct {
	specs []model.ConceptSpec
}

// Resolve validates specs and returns their grouping in declared order.
// Every concept needs a non-empty identifier and at least one problem.
func Resolve(specs []model.ConceptSpec) (Grouping, error) {
	if len(specs) == 0 {
		return Grouping{}, fmt.Errorf("%w: no concepts declared", ErrConfiguration)
	}
	out := make([]model.ConceptSpec, 0, len(specs))
	for i, s := range specs {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return Grouping{}, fmt.Errorf("%w: concept #%d has no identifier", ErrConfiguration, i+1)
		}
		if len(s.Problems) == 0 {
			return Grouping{}, fmt.Errorf("%w: concept %s has no problems", ErrConfiguration, id)
		}
		problems := make([]string, 0, len(s.Problems))
		for _, p := range s.Problems {
			p = strings.TrimSpace(p)
			if p == "" {
				return Grouping{}, fmt.Errorf("%w: concept %s has a blank problem name", ErrConfiguration, id)
			}
			problems = append(problems, p)
		}
		out = append(out, model.ConceptSpec{ID: id, Problems: problems})
	}
	return Grouping{specs: out}, nil
}

// Concepts returns a copy of the grouping's concepts.
func (g Grouping) Concepts() []model.ConceptSpec {
	out := make([]model.ConceptSpec, len(g.specs))
	for i, s := range g.specs {
		out[i] = model.ConceptSpec{ID: s.ID, Problems: append([]string(nil), s.Problems...)}
	}
	return out
}

// Len returns the number of concepts.
func (g Grouping) Len() int { return len(g.specs) }

// At returns the i-th concept. The returned problems slice must not be modified.
func (g Grouping) At(i int) model.ConceptSpec { return g.specs[i] }

// Parse reads command-line concept declarations.
//
// Two forms are accepted:
//
//	"1 a b c"     identifier followed by whitespace separated problems
//	"1: a, b, c"  identifier, colon, then comma or whitespace separated problems
func Parse(args []string) ([]model.ConceptSpec, error) {
	specs := make([]model.ConceptSpec, 0, len(args))
	for _, arg := range args {
		s, err := parseOne(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func parseOne(arg string) (model.ConceptSpec, error) {
	var id, rest string
	if before, after, ok := strings.Cut(arg, ":"); ok {
		id, rest = before, after
	} else {
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			return model.ConceptSpec{}, fmt.Errorf("%w: empty concept declaration", ErrConfiguration)
		}
		id, rest = fields[0], strings.Join(fields[1:], " ")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return model.ConceptSpec{}, fmt.Errorf("%w: concept %q has no identifier", ErrConfiguration, arg)
	}
	problems := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(problems) == 0 {
		return model.ConceptSpec{}, fmt.Errorf("%w: concept %s has no problems", ErrConfiguration, id)
	}
	return model.ConceptSpec{ID: id, Problems: problems}, nil
}
