package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/prescriber/internal/concept"
	"github.com/pavelanni/prescriber/internal/evaluation"
	"github.com/pavelanni/prescriber/internal/gradereport"
	appI18n "github.com/pavelanni/prescriber/internal/i18n"
	"github.com/pavelanni/prescriber/internal/model"
	"github.com/pavelanni/prescriber/internal/prescription"
	"github.com/pavelanni/prescriber/internal/render"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prescriber",
		Short: "Turn quiz rubric evaluations into per-student practice prescriptions",
	}

	build := buildCmd()
	root.AddCommand(build, inspectCmd())

	// Make "build" the default when no subcommand is given.
	root.RunE = build.RunE
	root.Flags().AddFlagSet(build.Flags())

	return root
}

func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayP("concept", "c", nil, `Concept and its problems, e.g. -c "1 2.1 2.4" or -c "1: 2.1, 2.4" (repeatable, in order)`)
	f.StringP("evaluations", "e", "", "Rubric evaluations CSV export")
	f.StringP("quiz", "q", "", `Quiz name, e.g. "Quiz 1"`)
	f.String("mode", string(evaluation.ModeAuto), "How rubric columns map to concepts (auto, positional, labeled)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build prescription documents for every student",
		RunE:  runBuild,
	}
	addInputFlags(cmd)
	f := cmd.Flags()
	f.StringP("grades", "g", "", "Optional grade report CSV with Recitation <N> [<PROBLEM>] columns")
	f.String("missing", "auto", "Students without an evaluation row: skip, all-missed, or auto (all-missed when --grades is set)")
	f.StringP("out-dir", "o", ".", "Directory for generated documents")
	f.StringSliceP("format", "f", []string{"pdf"}, "Output formats (tex, pdf, json)")
	f.String("latex", strings.Join(append([]string{render.DefaultLaTeX.Command}, render.DefaultLaTeX.Args...), " "), "LaTeX command used for pdf output")
	f.IntP("jobs", "j", 0, "Parallel workers (0 = number of CPUs)")
	f.StringP("lang", "l", "en", "Document language (en, ru)")
	return cmd
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the missed concepts parsed from an evaluation export",
		RunE:  runInspect,
	}
	addInputFlags(cmd)
	cmd.Flags().StringP("lang", "l", "en", "Language for table headings (en, ru)")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PRESCRIBER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("prescriber")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/prescriber")
	v.AddConfigPath("/etc/prescriber")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// conceptSpecs collects concept declarations from -c flags, or from the
// config file's "concept" string list or structured "concepts" list.
func conceptSpecs(cmd *cobra.Command, v *viper.Viper) (concept.Grouping, error) {
	var specs []model.ConceptSpec
	if cmd.Flags().Changed("concept") {
		args, _ := cmd.Flags().GetStringArray("concept")
		parsed, err := concept.Parse(args)
		if err != nil {
			return concept.Grouping{}, err
		}
		specs = parsed
	} else if args := conceptArgs(v); len(args) > 0 {
		parsed, err := concept.Parse(args)
		if err != nil {
			return concept.Grouping{}, err
		}
		specs = parsed
	} else if v.IsSet("concepts") {
		if err := v.UnmarshalKey("concepts", &specs); err != nil {
			return concept.Grouping{}, fmt.Errorf("%w: concepts: %w", concept.ErrConfiguration, err)
		}
	}
	return concept.Resolve(specs)
}

// conceptArgs reads concept declarations set through the environment or the
// config file. A plain string holds one or more declarations separated by
// ';', a list holds one declaration per item.
func conceptArgs(v *viper.Viper) []string {
	raw, ok := v.Get("concept").(string)
	if !ok {
		return v.GetStringSlice("concept")
	}
	var args []string
	for _, s := range strings.Split(raw, ";") {
		if s = strings.TrimSpace(s); s != "" {
			args = append(args, s)
		}
	}
	return args
}

type buildOptions struct {
	quiz     string
	outDir   string
	formats  []string
	missing  string
	lang     string
	jobs     int
	mode     evaluation.Mode
	compiler render.LaTeXCompiler
}

var validFormats = []string{"tex", "pdf", "json"}

func buildOptionsFrom(v *viper.Viper) (buildOptions, error) {
	opts := buildOptions{
		quiz:     strings.TrimSpace(v.GetString("quiz")),
		outDir:   v.GetString("out-dir"),
		missing:  strings.ToLower(strings.TrimSpace(v.GetString("missing"))),
		lang:     v.GetString("lang"),
		jobs:     v.GetInt("jobs"),
		compiler: render.ParseCompiler(v.GetString("latex")),
	}
	if opts.quiz == "" {
		return opts, fmt.Errorf("%w: --quiz is required", concept.ErrConfiguration)
	}
	if v.GetString("evaluations") == "" {
		return opts, fmt.Errorf("%w: --evaluations is required", concept.ErrConfiguration)
	}
	mode, err := evaluation.ParseMode(v.GetString("mode"))
	if err != nil {
		return opts, fmt.Errorf("%w: %w", concept.ErrConfiguration, err)
	}
	opts.mode = mode
	for _, f := range v.GetStringSlice("format") {
		f = strings.ToLower(strings.TrimSpace(f))
		if !slices.Contains(validFormats, f) {
			return opts, fmt.Errorf("%w: unknown format %q", concept.ErrConfiguration, f)
		}
		if !slices.Contains(opts.formats, f) {
			opts.formats = append(opts.formats, f)
		}
	}
	if opts.missing != "auto" {
		if _, err := prescription.ParseMissingPolicy(opts.missing); err != nil {
			return opts, fmt.Errorf("%w: %w", concept.ErrConfiguration, err)
		}
	}
	return opts, nil
}

// resolveMissing applies the "auto" policy: all-missed when a grade report
// supplies the roster, skip otherwise.
func resolveMissing(name string, haveReport bool) model.MissingPolicy {
	if name == "auto" {
		if haveReport {
			return model.MissingAllMissed
		}
		return model.MissingSkip
	}
	p, _ := prescription.ParseMissingPolicy(name)
	return p
}

func runBuild(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	// Configuration errors are fatal and reported before any table is read.
	grouping, err := conceptSpecs(cmd, v)
	if err != nil {
		return err
	}
	opts, err := buildOptionsFrom(v)
	if err != nil {
		return err
	}
	if err := appI18n.Init(opts.lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLanguage(cmd.Context(), opts.lang)

	evals, err := evaluation.ParseFile(v.GetString("evaluations"), opts.mode)
	if err != nil {
		slog.Warn("could not read evaluations, continuing without them", "path", v.GetString("evaluations"), "error", err)
	}

	var report *gradereport.Report
	if path := v.GetString("grades"); path != "" {
		report, err = gradereport.ParseFile(path)
		if err != nil {
			slog.Warn("could not read grade report, continuing without it", "path", path, "error", err)
		}
	}

	b := &prescription.Builder{
		Concepts: grouping,
		Quiz:     opts.quiz,
		Missing:  resolveMissing(opts.missing, report != nil && report.Len() > 0),
	}
	var roster prescription.RosterSource
	if report != nil && report.Len() > 0 {
		b.Grades = report
		roster = report
	}

	res, err := b.BuildAll(ctx, prescription.Roster(evals, roster), evals, opts.jobs)
	if err != nil {
		return fmt.Errorf("build prescriptions: %w", err)
	}
	for _, s := range res.Skipped {
		slog.Info("no evaluation for student, skipping", "sid", s.SID, "name", s.FullName())
	}
	template := b.Template()

	outputs, assembleErr := writeOutputs(ctx, opts, grouping, template, res.Prescriptions)

	printSummary(ctx, os.Stdout, summary{
		built:        len(res.Prescriptions),
		skippedRows:  len(evals.Skipped),
		noEvaluation: res.NoEvaluation,
		outputs:      outputs,
	})
	return assembleErr
}

func writeOutputs(ctx context.Context, opts buildOptions, grouping concept.Grouping, template model.Prescription, ps []model.Prescription) ([]string, error) {
	short := strings.ReplaceAll(opts.quiz, " ", "")
	var outputs []string
	var errs []error

	if slices.Contains(opts.formats, "json") {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		path := filepath.Join(opts.outDir, "prescriptions-"+short+".json")
		exp := render.NewExport(opts.quiz, grouping.Concepts(), template, ps)
		if err := render.WriteJSONFile(path, exp); err != nil {
			errs = append(errs, err)
		} else {
			outputs = append(outputs, path)
		}
	}

	a := &render.Assembler{
		OutDir: opts.outDir,
		TeX:    slices.Contains(opts.formats, "tex"),
		Jobs:   opts.jobs,
	}
	if slices.Contains(opts.formats, "pdf") {
		a.Compiler = opts.compiler
	}
	if !a.TeX && a.Compiler == nil {
		return outputs, errors.Join(errs...)
	}

	var jobs []render.Job
	if len(ps) > 0 {
		jobs = append(jobs, render.Job{Basename: "prescriptions-" + short, Prescriptions: ps})
	} else {
		slog.Warn("no prescriptions were built, writing the template only")
	}
	jobs = append(jobs, render.Job{Basename: "template-" + short, Prescriptions: []model.Prescription{template}})

	paths, err := a.Assemble(ctx, jobs)
	outputs = append(outputs, paths...)
	if err != nil {
		errs = append(errs, err)
	}
	return outputs, errors.Join(errs...)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	mode, err := evaluation.ParseMode(v.GetString("mode"))
	if err != nil {
		return err
	}
	path := v.GetString("evaluations")
	if path == "" {
		return fmt.Errorf("%w: --evaluations is required", concept.ErrConfiguration)
	}
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLanguage(cmd.Context(), v.GetString("lang"))

	evals, err := evaluation.ParseFile(path, mode)
	if err != nil {
		slog.Warn("could not read evaluations", "path", path, "error", err)
	}

	var specs []model.ConceptSpec
	if cmd.Flags().Changed("concept") || v.IsSet("concept") || v.IsSet("concepts") {
		grouping, err := conceptSpecs(cmd, v)
		if err != nil {
			return err
		}
		specs = grouping.Concepts()
	} else {
		specs = impliedConcepts(evals)
	}

	printInspect(ctx, os.Stdout, evals, specs)
	return nil
}

// impliedConcepts derives concept identifiers from the table itself: the
// header labels in labeled mode, rubric column numbers otherwise.
func impliedConcepts(evals *evaluation.Evaluations) []model.ConceptSpec {
	var specs []model.ConceptSpec
	if evals.Mode == evaluation.ModeLabeled {
		seen := make(map[string]bool)
		for _, l := range evals.Labels {
			if !seen[l.ID] {
				seen[l.ID] = true
				specs = append(specs, model.ConceptSpec{ID: l.ID})
			}
		}
		return specs
	}
	width := 0
	for _, sid := range evals.SIDs() {
		rec, _ := evals.Get(sid)
		width = max(width, len(rec.Flags))
	}
	for i := range width {
		specs = append(specs, model.ConceptSpec{ID: fmt.Sprint(i + 1)})
	}
	return specs
}
