// Package render turns finished prescriptions into documents.
package render

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"

	"github.com/pavelanni/prescriber/internal/i18n"
	"github.com/pavelanni/prescriber/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	loadOnce sync.Once
	loadErr  error
	texTmpl  *template.Template
)

func load() error {
	loadOnce.Do(func() {
		content, err := templateFS.ReadFile("templates/prescriptions.tex.tmpl")
		if err != nil {
			loadErr = errors.New("failed to read document template: " + err.Error())
			return
		}
		// LaTeX is full of braces, so the template uses angle delimiters.
		texTmpl, err = template.New("prescriptions").Delims("<<", ">>").Parse(string(content))
		if err != nil {
			loadErr = errors.New("failed to parse document template: " + err.Error())
		}
	})
	return loadErr
}

type texDoc struct {
	Pages []texPage
}

type texPage struct {
	Name     string
	Title    string
	SID      string
	Concepts []texConcept
}

type texConcept struct {
	Label    string
	Problems []texProblem
}

type texProblem struct {
	Name    string
	Status  string
	Excused bool
}

// blankField fills the name and SID slots of the template page.
const blankField = `\quad`

// WriteTeX writes one page per prescription. Labels are localized with the
// localizer carried by ctx.
func WriteTeX(ctx context.Context, w io.Writer, ps []model.Prescription) error {
	if err := load(); err != nil {
		return err
	}
	doc := texDoc{Pages: make([]texPage, 0, len(ps))}
	for _, p := range ps {
		page := texPage{
			Name:  escapeTeX(p.StudentName),
			Title: escapeTeX(i18n.Td(ctx, "QuizPrescriptions", map[string]any{"Quiz": p.QuizName})),
			SID:   escapeTeX(p.StudentID),
		}
		if p.IsTemplate() {
			page.Name, page.SID = blankField, blankField
		}
		for _, c := range p.Concepts {
			tc := texConcept{Label: escapeTeX(i18n.Td(ctx, "ConceptN", map[string]any{"ID": c.ID}))}
			for _, pr := range c.Problems {
				tc.Problems = append(tc.Problems, texProblem{
					Name:    escapeTeX(pr.Name),
					Status:  escapeTeX(string(pr.Status)),
					Excused: pr.Status == model.StatusExcused,
				})
			}
			page.Concepts = append(page.Concepts, tc)
		}
		doc.Pages = append(doc.Pages, page)
	}
	if err := texTmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	return nil
}

var texEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func escapeTeX(s string) string {
	return texEscaper.Replace(s)
}
