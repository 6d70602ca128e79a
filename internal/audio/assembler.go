package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

// Prober reports the playback duration of an audio file.
type Prober interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// Concatenator writes inputs back to back into out.
type Concatenator interface {
	Concat(ctx context.Context, out string, inputs ...string) error
}

// Assembler prepends a fixed intro to synthesized briefings.
type Assembler struct {
	prober Prober
	concat Concatenator
	outDir string
	logger *slog.Logger
}

var _ ports.AudioAssembler = (*Assembler)(nil)

// NewAssembler wires the media backend. Output files land next to the main segment
// when outDir is empty.
func NewAssembler(prober Prober, concat Concatenator, outDir string, logger *slog.Logger) *Assembler {
	return &Assembler{prober: prober, concat: concat, outDir: outDir, logger: logger}
}

// Assemble returns intro followed by main. A missing or unreadable intro yields main
// unchanged; an unreadable main is an *domain.AssemblyError.
func (a *Assembler) Assemble(ctx context.Context, main domain.AudioSegment, introPath string) (domain.AudioSegment, error) {
	mainDuration, err := a.load(ctx, main.Path)
	if err != nil {
		return domain.AudioSegment{}, &domain.AssemblyError{Path: main.Path, Cause: err}
	}

	if strings.TrimSpace(introPath) == "" {
		return main, nil
	}

	introDuration, err := a.load(ctx, introPath)
	if err != nil {
		a.warn("intro unavailable, using main segment only", "intro", introPath, "error", err)
		return main, nil
	}

	out := a.outputPath(main.Path)
	if err := a.concat.Concat(ctx, out, introPath, main.Path); err != nil {
		a.warn("intro concat failed, using main segment only", "intro", introPath, "error", err)
		return main, nil
	}

	combined := domain.AudioSegment{Path: out, Duration: introDuration + mainDuration}
	a.debug("intro attached", "output", out, "duration", combined.Duration)
	return combined, nil
}

func (a *Assembler) load(ctx context.Context, path string) (time.Duration, error) {
	if path == "" {
		return 0, errors.New("no audio path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return 0, fmt.Errorf("%s is not a usable audio file", path)
	}
	if a.prober == nil {
		return 0, errors.New("no audio prober configured")
	}
	duration, err := a.prober.Probe(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probe: %w", err)
	}
	return duration, nil
}

func (a *Assembler) outputPath(mainPath string) string {
	dir := a.outDir
	if dir == "" {
		dir = filepath.Dir(mainPath)
	}
	base := strings.TrimSuffix(filepath.Base(mainPath), filepath.Ext(mainPath))
	return filepath.Join(dir, base+"-with-intro"+filepath.Ext(mainPath))
}

func (a *Assembler) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Assembler) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
