// Package fingerprint computes acoustic fingerprints with Chromaprint's fpcalc.
package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/franz/music-catalog/internal/util"
)

// DefaultBinary is the Chromaprint command line tool
const DefaultBinary = "fpcalc"

// Result is the output of one fingerprint extraction
type Result struct {
	Duration    int // seconds, rounded
	Fingerprint string
}

// Fpcalc runs fpcalc once per file
type Fpcalc struct {
	binary string
}

// NewFpcalc creates an extractor; an empty binary means DefaultBinary
func NewFpcalc(binary string) *Fpcalc {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Fpcalc{binary: binary}
}

// Available reports whether the fpcalc binary can be found
func (f *Fpcalc) Available() bool {
	_, err := exec.LookPath(f.binary)
	return err == nil
}

// Extract fingerprints one file. Unreadable or corrupt media is reported
// as util.ErrCorrupt so the caller can skip the file.
func (f *Fpcalc) Extract(ctx context.Context, path string) (Result, error) {
	if _, err := exec.LookPath(f.binary); err != nil {
		return Result{}, fmt.Errorf("%s: %w", f.binary, util.ErrNotFound)
	}

	cmd := exec.CommandContext(ctx, f.binary, "-json", path)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("%w: fpcalc failed on %s: %s", util.ErrCorrupt, path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("fpcalc execution failed: %w", err)
	}

	return parseOutput(output)
}

type fpcalcOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

func parseOutput(data []byte) (Result, error) {
	var out fpcalcOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("%w: failed to parse fpcalc output: %v", util.ErrCorrupt, err)
	}
	if out.Fingerprint == "" {
		return Result{}, fmt.Errorf("%w: fpcalc returned an empty fingerprint", util.ErrCorrupt)
	}
	return Result{
		Duration:    int(math.Round(out.Duration)),
		Fingerprint: out.Fingerprint,
	}, nil
}
