package main

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pavelanni/prescriber/internal/evaluation"
	appI18n "github.com/pavelanni/prescriber/internal/i18n"
	"github.com/pavelanni/prescriber/internal/model"
)

var heading = color.New(color.FgCyan, color.Bold)

type summary struct {
	built        int
	skippedRows  int
	noEvaluation int
	outputs      []string
}

func printSummary(ctx context.Context, w io.Writer, s summary) {
	heading.Fprintln(w, "\n"+appI18n.T(ctx, "SummaryTitle"))

	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{appI18n.T(ctx, "SummaryStudents"), strconv.Itoa(s.built)})
	table.Append([]string{appI18n.T(ctx, "SummarySkippedRows"), strconv.Itoa(s.skippedRows)})
	table.Append([]string{appI18n.T(ctx, "SummaryNoEvaluation"), strconv.Itoa(s.noEvaluation)})
	table.Append([]string{appI18n.T(ctx, "SummaryOutputs"), strings.Join(s.outputs, "\n")})
	table.Render()

	color.New(color.FgGreen).Fprintln(w, appI18n.Tp(ctx, "StudentsBuilt", s.built))
}

func printInspect(ctx context.Context, w io.Writer, evals *evaluation.Evaluations, specs []model.ConceptSpec) {
	heading.Fprintf(w, "\n%s (%s)\n", appI18n.T(ctx, "InspectTitle"), evals.Mode)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		appI18n.T(ctx, "ColumnSID"),
		appI18n.T(ctx, "ColumnName"),
		appI18n.T(ctx, "ColumnMissed"),
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, sid := range evals.SIDs() {
		rec, _ := evals.Get(sid)
		table.Append([]string{
			sid,
			rec.Student.FullName(),
			strings.Join(rec.MissedConcepts(specs), ", "),
		})
	}
	table.Render()
}
