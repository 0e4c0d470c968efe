// Package scan discovers audio files below a media root.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/util"
)

// AudioExtensions are the extensions recognised without configuration.
// .wv is WavPack, .mpc is Musepack.
var AudioExtensions = strings.Fields(".mp3 .flac .m4a .aac .ogg .opus .wav .aiff .aif .wma .ape .wv .mpc")

// Scanner discovers audio files in a directory tree
type Scanner struct {
	fs           afero.Fs
	extensions   map[string]bool
	exclude      []string
	showProgress bool
	logger       *util.Logger
}

// Config holds scanner configuration
type Config struct {
	Fs             afero.Fs // defaults to the OS filesystem
	AdditionalExts []string
	Exclude        []string // directory trees never descended into
	ShowProgress   bool
	Logger         *util.Logger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	s := &Scanner{
		fs:           cfg.Fs,
		extensions:   make(map[string]bool),
		showProgress: cfg.ShowProgress,
		logger:       util.OrDefault(cfg.Logger),
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	for _, ext := range slices.Concat(AudioExtensions, cfg.AdditionalExts) {
		s.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range cfg.Exclude {
		if dir != "" {
			s.exclude = append(s.exclude, filepath.Clean(dir))
		}
	}
	return s
}

// Result represents a scan result
type Result struct {
	Files   []string // audio files in lexical order
	Ignored int      // non-audio and hidden files
	Errors  []error  // unreadable entries, walking continued
}

// Scan walks root and returns the audio files below it. Unreadable entries
// below root are collected in Result.Errors and skipped.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	s.logger.Infof("Scanning %s", root)
	s.logger.Debugf("Audio extensions: %s", strings.Join(s.GetSupportedExtensions(), " "))

	result := &Result{}
	bar := s.newBar()

	walkErr := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err != nil && path == root:
			return err
		case err != nil:
			s.logger.Warnf("Cannot read %s: %v", path, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
		case info.IsDir():
			if path != root && s.excluded(path) {
				s.logger.Debugf("Skipping excluded directory %s", path)
				return filepath.SkipDir
			}
		case strings.HasPrefix(info.Name(), "."), !s.isAudioFile(path):
			// hidden files cover our own temporaries and macOS resource forks
			result.Ignored++
		default:
			result.Files = append(result.Files, path)
			if bar != nil {
				bar.Add(1)
			}
		}
		return nil
	})
	if bar != nil {
		bar.Finish()
	}
	if walkErr != nil {
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	sort.Strings(result.Files)
	s.logger.Infof("Found %d audio files (%d ignored, %d unreadable)",
		len(result.Files), result.Ignored, len(result.Errors))
	return result, nil
}

// newBar returns a spinner counting files, or nil when output is not a terminal
func (s *Scanner) newBar() *progressbar.ProgressBar {
	if !s.showProgress || s.logger.IsQuiet() || !util.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (s *Scanner) excluded(dir string) bool {
	dir = filepath.Clean(dir)
	for _, ex := range s.exclude {
		if dir == ex || strings.HasPrefix(dir, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Scanner) isAudioFile(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// GetSupportedExtensions returns the recognised extensions, sorted
func (s *Scanner) GetSupportedExtensions() []string {
	exts := make([]string, 0, len(s.extensions))
	for ext := range s.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
