package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/prescriber/internal/model"
)

// Compiler turns dir/<texName> into dir/<base>.pdf.
type Compiler interface {
	Compile(ctx context.Context, dir, texName string) error
}

// LaTeXCompiler runs an external TeX engine with dir as its working directory.
type LaTeXCompiler struct {
	Command string
	Args    []string
}

// DefaultLaTeX is pdflatex that stops at the first error instead of prompting.
var DefaultLaTeX = LaTeXCompiler{
	Command: "pdflatex",
	Args:    []string{"-halt-on-error", "-interaction=nonstopmode"},
}

// ParseCompiler splits a command line such as "xelatex -halt-on-error".
// An empty line yields DefaultLaTeX.
func ParseCompiler(line string) LaTeXCompiler {
	f := strings.Fields(line)
	if len(f) == 0 {
		return DefaultLaTeX
	}
	return LaTeXCompiler{Command: f[0], Args: f[1:]}
}

func (c LaTeXCompiler) Compile(ctx context.Context, dir, texName string) error {
	args := append(append([]string(nil), c.Args...), texName)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", c.Command, texName, err, lastLines(out, 5))
	}
	return nil
}

// Job is one output document.
type Job struct {
	Basename      string
	Prescriptions []model.Prescription
}

// Assembler writes documents into OutDir.
type Assembler struct {
	OutDir string
	// TeX writes <Basename>.tex next to the other outputs.
	TeX bool
	// Compiler, when set, produces <Basename>.pdf.
	Compiler Compiler
	// Jobs bounds concurrent compilations; <= 0 means GOMAXPROCS.
	Jobs int
}

// Assemble runs every job and returns the written paths in job order. A
// failing job does not stop the others; all failures are joined in err.
func (a *Assembler) Assemble(ctx context.Context, jobs []Job) ([]string, error) {
	if err := os.MkdirAll(a.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	limit := a.Jobs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	paths := make([][]string, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			paths[i], errs[i] = a.run(ctx, job)
			if errs[i] != nil {
				slog.Error("document assembly failed", "document", job.Basename, "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for _, p := range paths {
		out = append(out, p...)
	}
	return out, errors.Join(errs...)
}

func (a *Assembler) run(ctx context.Context, job Job) ([]string, error) {
	var written []string
	if a.TeX {
		p := filepath.Join(a.OutDir, job.Basename+".tex")
		if err := writeTeXFile(ctx, p, job.Prescriptions); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if a.Compiler != nil {
		p, err := a.compile(ctx, job)
		if err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// compile builds the PDF inside a private temporary directory that is
// removed on return, then moves the result into OutDir.
func (a *Assembler) compile(ctx context.Context, job Job) (string, error) {
	tmp, err := os.MkdirTemp("", "prescriber-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	texName := job.Basename + ".tex"
	if err := writeTeXFile(ctx, filepath.Join(tmp, texName), job.Prescriptions); err != nil {
		return "", err
	}
	if err := a.Compiler.Compile(ctx, tmp, texName); err != nil {
		return "", err
	}

	dst := filepath.Join(a.OutDir, job.Basename+".pdf")
	if err := moveFile(filepath.Join(tmp, job.Basename+".pdf"), dst); err != nil {
		return "", fmt.Errorf("move %s: %w", job.Basename+".pdf", err)
	}
	slog.Info("wrote document", "path", dst, "pages", len(job.Prescriptions))
	return dst, nil
}

func writeTeXFile(ctx context.Context, path string, ps []model.Prescription) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := WriteTeX(ctx, w, ps); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// moveFile renames src to dst, copying when they are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func lastLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
