// Package fsops performs collision-safe file relocation.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/util"
)

// Relocator moves and copies files into destination directories without
// ever overwriting an existing file
type Relocator struct {
	fs         afero.Fs
	dryRun     bool
	bufferSize int
	retry      *util.RetryConfig
	logger     *util.Logger
}

// Config holds relocator configuration
type Config struct {
	Fs         afero.Fs          // defaults to the OS filesystem
	DryRun     bool              // compute destinations, touch nothing
	BufferSize int               // copy buffer, default 128 KiB
	Retry      *util.RetryConfig // retries transient failures when set
	Logger     *util.Logger
}

// New creates a new Relocator
func New(cfg *Config) *Relocator {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 128 * 1024
	}
	return &Relocator{
		fs:         fs,
		dryRun:     cfg.DryRun,
		bufferSize: bufferSize,
		retry:      cfg.Retry,
		logger:     util.OrDefault(cfg.Logger),
	}
}

// Fs returns the filesystem the relocator operates on
func (r *Relocator) Fs() afero.Fs {
	return r.fs
}

// DryRun reports whether physical changes are suppressed
func (r *Relocator) DryRun() bool {
	return r.dryRun
}

// Move moves src into destDir under filename (the source name when empty)
// and returns the final path. Moving a file onto itself is a no-op.
func (r *Relocator) Move(ctx context.Context, src, destDir, filename string) (string, error) {
	target, same, err := r.target(src, destDir, filename)
	if err != nil || same {
		return target, err
	}

	if r.dryRun {
		r.logger.Infof("[dry-run] move %s -> %s", src, target)
		return target, nil
	}

	if err := r.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := r.do(ctx, "rename "+src, func() error { return r.fs.Rename(src, target) }); err == nil {
		r.logger.Debugf("Moved: %s -> %s", src, target)
		return target, nil
	}

	// Rename fails across filesystems; fall back to copy + delete
	if err := r.do(ctx, "copy "+src, func() error { return r.copyFile(ctx, src, target) }); err != nil {
		return "", err
	}
	if err := r.fs.Remove(src); err != nil {
		r.logger.Warnf("Failed to delete source file %s: %v", src, err)
	}

	r.logger.Debugf("Moved: %s -> %s", src, target)
	return target, nil
}

// Copy copies src into destDir under filename and returns the final path.
// Copying a file onto itself is a no-op.
func (r *Relocator) Copy(ctx context.Context, src, destDir, filename string) (string, error) {
	target, same, err := r.target(src, destDir, filename)
	if err != nil || same {
		return target, err
	}

	if r.dryRun {
		r.logger.Infof("[dry-run] copy %s -> %s", src, target)
		return target, nil
	}

	if err := r.do(ctx, "copy "+src, func() error { return r.copyFile(ctx, src, target) }); err != nil {
		return "", err
	}

	r.logger.Debugf("Copied: %s -> %s", src, target)
	return target, nil
}

// do runs op, retrying transient failures when a retry policy is set
func (r *Relocator) do(ctx context.Context, name string, op func() error) error {
	if r.retry == nil {
		return op()
	}
	return util.Retry(ctx, r.retry, r.logger, op, name)
}

// target resolves a collision-free destination. same is true when the
// source already sits at the requested destination.
func (r *Relocator) target(src, destDir, filename string) (string, bool, error) {
	if filename == "" {
		filename = filepath.Base(src)
	}
	src = filepath.Clean(src)
	want := filepath.Join(destDir, filename)

	if want == src {
		return src, true, nil
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	candidate := want
	for n := 1; ; n++ {
		exists, err := afero.Exists(r.fs, candidate)
		if err != nil {
			return "", false, fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		if !exists {
			return candidate, false, nil
		}
		candidate = filepath.Join(destDir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if candidate == src {
			return src, true, nil
		}
	}
}

// copyFile copies src to dest via a .part temporary file and an atomic rename
func (r *Relocator) copyFile(ctx context.Context, src, dest string) error {
	if err := r.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := r.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	tempPath := dest + ".part"
	out, err := r.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = copyWithContext(ctx, out, in, r.bufferSize)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		r.fs.Remove(tempPath)
		return fmt.Errorf("failed to copy: %w", err)
	}

	if err := r.fs.Rename(tempPath, dest); err != nil {
		r.fs.Remove(tempPath)
		return fmt.Errorf("failed to rename: %w", err)
	}

	// Keep the source mtime so incremental scans see an unchanged file
	if err := r.fs.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		r.logger.Debugf("Failed to preserve mtime on %s: %v", dest, err)
	}

	return nil
}

// Remove deletes a file, treating a missing file as success
func (r *Relocator) Remove(path string) error {
	if r.dryRun {
		r.logger.Infof("[dry-run] remove %s", path)
		return nil
	}
	if err := r.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	buf := make([]byte, bufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			return written, nil
		}
	}
}
