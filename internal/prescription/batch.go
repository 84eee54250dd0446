package prescription

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/prescriber/internal/model"
)

// EvaluationSource is the parsed evaluation export.
type EvaluationSource interface {
	SIDs() []string
	Get(sid string) (*model.EvaluationRecord, bool)
}

// RosterSource lists the students a grade report knows about.
type RosterSource interface {
	Students() []model.StudentIdentity
}

// Roster returns the students to build for, in output order. A non-empty grade
// report roster is authoritative; otherwise the evaluation export is used.
// Names missing from the report are filled in from the evaluation record.
func Roster(evals EvaluationSource, report RosterSource) []model.StudentIdentity {
	if report != nil {
		if students := report.Students(); len(students) > 0 {
			for i, s := range students {
				if s.FirstName != "" || s.LastName != "" {
					continue
				}
				if rec, ok := evals.Get(s.SID); ok {
					students[i].FirstName = rec.Student.FirstName
					students[i].LastName = rec.Student.LastName
				}
			}
			return students
		}
	}
	sids := evals.SIDs()
	out := make([]model.StudentIdentity, 0, len(sids))
	for _, sid := range sids {
		rec, _ := evals.Get(sid)
		out = append(out, rec.Student)
	}
	return out
}

// Result is the outcome of BuildAll.
type Result struct {
	Prescriptions []model.Prescription
	// Skipped lists students that got no prescription under the Missing policy.
	Skipped []model.StudentIdentity
	// NoEvaluation counts roster students without an evaluation record.
	NoEvaluation int
}

// BuildAll builds a prescription for every roster student using up to jobs
// goroutines (GOMAXPROCS when jobs <= 0). Output follows roster order.
func (b *Builder) BuildAll(ctx context.Context, roster []model.StudentIdentity, evals EvaluationSource, jobs int) (Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	built := make([]model.Prescription, len(roster))
	made := make([]bool, len(roster))
	found := make([]bool, len(roster))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, student := range roster {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, ok := evals.Get(student.SID)
			if !ok {
				rec = nil
			}
			found[i] = ok
			built[i], made[i] = b.Build(student, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for i := range roster {
		if !found[i] {
			res.NoEvaluation++
		}
		if made[i] {
			res.Prescriptions = append(res.Prescriptions, built[i])
		} else {
			res.Skipped = append(res.Skipped, roster[i])
		}
	}
	return res, nil
}
