// Package latex typesets documents by filling LaTeX templates and running
// pdflatex on them.
package latex

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"memberdesk/backend/internal/ports"
)

//go:embed templates/*.tex
var templateFS embed.FS

const documentName = "document"

type Config struct {
	Binary  string
	Timeout time.Duration
}

type runFunc func(ctx context.Context, dir, binary string, args ...string) ([]byte, error)

type Renderer struct {
	binary    string
	timeout   time.Duration
	attempts  uint
	logger    *zap.Logger
	templates *template.Template
	run       runFunc
}

var _ ports.DocumentRenderer = (*Renderer)(nil)

func NewRenderer(config Config, logger *zap.Logger) (*Renderer, error) {
	if strings.TrimSpace(config.Binary) == "" {
		config.Binary = "pdflatex"
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := template.New("documents").
		Delims("<<", ">>").
		Funcs(templateFuncs).
		ParseFS(templateFS, "templates/*.tex")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}

	return &Renderer{
		binary:    config.Binary,
		timeout:   config.Timeout,
		attempts:  2,
		logger:    logger.Named("latex"),
		templates: templates,
		run:       runCommand,
	}, nil
}

// Source fills the named template without typesetting it.
func (r *Renderer) Source(name string, data any) ([]byte, error) {
	tmpl := r.templates.Lookup(name + ".tex")
	if tmpl == nil {
		return nil, fmt.Errorf("unknown document template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("fill document template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Render typesets the named template in a scratch directory. A run that
// exceeds the timeout is retried once; LaTeX errors are not.
func (r *Renderer) Render(ctx context.Context, name string, data any) ([]byte, error) {
	source, err := r.Source(name, data)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "memberdesk-latex-")
	if err != nil {
		return nil, fmt.Errorf("create latex work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texFile := documentName + ".tex"
	if err := os.WriteFile(filepath.Join(dir, texFile), source, 0o600); err != nil {
		return nil, fmt.Errorf("write latex source: %w", err)
	}

	started := time.Now()
	err = retry.Do(
		func() error {
			runCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			output, runErr := r.run(runCtx, dir, r.binary,
				"-interaction=nonstopmode",
				"-halt-on-error",
				"-output-directory="+dir,
				texFile,
			)
			if runErr == nil {
				return nil
			}
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%s timed out after %s", r.binary, r.timeout)
			}
			return retry.Unrecoverable(fmt.Errorf("%s failed: %w: %s", r.binary, runErr, logTail(output, 15)))
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		r.logger.Error("document rendering failed", zap.String("template", name), zap.Error(err))
		return nil, fmt.Errorf("render %q: %w", name, err)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, documentName+".pdf"))
	if err != nil {
		return nil, fmt.Errorf("read rendered %q: %w", name, err)
	}
	r.logger.Debug("document rendered",
		zap.String("template", name),
		zap.Int("bytes", len(pdf)),
		zap.Duration("took", time.Since(started)),
	)
	return pdf, nil
}

func runCommand(ctx context.Context, dir, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func logTail(output []byte, lines int) string {
	all := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n")
}
