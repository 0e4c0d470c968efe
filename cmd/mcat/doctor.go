package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-catalog/internal/store"
	"github.com/franz/music-catalog/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mcat can operate correctly.

This command checks:
- Required tools (fpcalc)
- Optional tools (ffprobe for quality, ffmpeg for tagging)
- SQLite version and catalog integrity
- Media root is readable, library and quarantine roots are writable
- Whether quarantining is a rename or a copy
- Disk space availability

Use this command to troubleshoot issues before running mcat.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().StringP("media-root", "m", "", "media root to check (optional)")
	doctorCmd.Flags().StringP("library-root", "l", "", "library root to check (optional)")
	doctorCmd.Flags().String("quarantine-root", "", "quarantine root to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func passed(name, format string, args ...any) checkResult {
	return checkResult{name: name, message: fmt.Sprintf(format, args...)}
}

func warned(name, format string, args ...any) checkResult {
	return checkResult{name: name, warning: true, message: fmt.Sprintf(format, args...)}
}

func failed(name, format string, args ...any) checkResult {
	return checkResult{name: name, error: true, message: fmt.Sprintf(format, args...)}
}

// toolSpec describes an external program and how to read its version
type toolSpec struct {
	label    string
	binary   string
	args     []string
	required bool
	purpose  string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{
		"media-root":      "media_root",
		"library-root":    "library_root",
		"quarantine-root": "quarantine_root",
	})

	util.InfoLog("=== mcat doctor ===")
	util.InfoLog("")

	version := []string{"-version"}
	results := []checkResult{
		checkTool(toolSpec{label: "fpcalc", binary: GetConfigString("fpcalc", "fpcalc"), args: version,
			required: true, purpose: "required for fingerprinting"}),
		checkTool(toolSpec{label: "ffprobe", binary: GetConfigString("ffprobe", "ffprobe"), args: version,
			purpose: "quality falls back to tags"}),
		checkTool(toolSpec{label: "ffmpeg", binary: GetConfigString("ffmpeg", "ffmpeg"), args: version,
			purpose: "tags will not be written"}),
		checkSQLite(),
		checkDatabase(GetConfigString("db", "mcat.db")),
	}

	if viper.GetString("api_key") == "" {
		results = append(results, warned("AcoustID API key", "not set (files are identified from local history only)"))
	}

	mediaRoot := viper.GetString("media_root")
	libraryRoot := GetConfigString("library_root", mediaRoot)
	quarantineRoot := viper.GetString("quarantine_root")

	if mediaRoot != "" {
		results = append(results, checkMediaRoot(mediaRoot))
	}
	if libraryRoot != "" && libraryRoot != mediaRoot {
		results = append(results, checkWritableRoot("Library root", libraryRoot))
	}
	if quarantineRoot != "" {
		results = append(results, checkWritableRoot("Quarantine root", quarantineRoot))
	}
	if libraryRoot != "" && quarantineRoot != "" {
		results = append(results, checkSameFilesystem(libraryRoot, quarantineRoot))
	}
	if libraryRoot != "" {
		results = append(results, checkDiskSpace(libraryRoot, "library"))
	}
	for _, root := range []string{mediaRoot, libraryRoot} {
		if root != "" && util.IsNetworkPath(root) {
			results = append(results, warned("Network storage", "%s is on a network share (NAS tuning applies)", root))
			break
		}
	}

	return printDoctorResults(results)
}

// printDoctorResults logs one line per check and fails if any check errored
func printDoctorResults(results []checkResult) error {
	util.InfoLog("")
	var errs, warns int
	for _, r := range results {
		line := r.name
		if r.message != "" {
			line += ": " + r.message
		}
		switch {
		case r.error:
			errs++
			util.ErrorLog("[✗] %s", line)
		case r.warning:
			warns++
			util.WarnLog("[⚠] %s", line)
		default:
			util.SuccessLog("[✓] %s", line)
		}
	}
	util.InfoLog("")

	switch {
	case errs > 0:
		util.ErrorLog("%d check(s) failed, fix them before scanning.", errs)
		return fmt.Errorf("%d diagnostic check(s) failed", errs)
	case warns > 0:
		util.WarnLog("%d warning(s), mcat can run with reduced functionality.", warns)
	default:
		util.SuccessLog("Everything looks good.")
	}
	return nil
}

// checkTool runs the tool's version command and reports the version word
func checkTool(spec toolSpec) checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, spec.binary, spec.args...).CombinedOutput()
	switch {
	case err == nil:
		return passed(spec.label, "version %s", parseVersion(string(output)))
	case spec.required:
		return failed(spec.label, "not found or not executable (%s)", spec.purpose)
	default:
		return warned(spec.label, "not found or not executable (%s)", spec.purpose)
	}
}

// parseVersion picks the word after "version" on the first line:
// "ffprobe version 6.1.1 ..." and "fpcalc version 1.5.1" alike
func parseVersion(output string) string {
	first, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(first)
	for i, f := range fields {
		if strings.EqualFold(f, "version") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

// checkSQLite reports the embedded SQLite version
func checkSQLite() checkResult {
	if v := store.SQLiteVersion(); v != "" {
		return passed("SQLite", "version %s (built-in)", v)
	}
	return failed("SQLite", "unable to determine version")
}

// checkDatabase verifies the catalog file opens and passes an integrity check
func checkDatabase(dbPath string) checkResult {
	const name = "Catalog"
	if dbPath == "" {
		return warned(name, "no database path specified (use --db flag or config)")
	}

	info, err := os.Stat(dbPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return passed(name, "%s (will be created on first run)", dbPath)
	case err != nil:
		return failed(name, "cannot access %s: %v", dbPath, err)
	case !info.Mode().IsRegular():
		return failed(name, "%s is not a regular file", dbPath)
	}

	// Diagnostics may run beside a scan
	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{NoLock: true})
	if err != nil {
		return failed(name, "cannot open %s: %v", dbPath, err)
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return failed(name, "integrity check failed: %v", err)
	}

	tracks, _ := db.Catalog().CountTracks(context.Background())
	return passed(name, "%s (%s, %d tracks)", dbPath, util.FormatBytes(info.Size()), tracks)
}

// checkMediaRoot verifies the media root can be listed
func checkMediaRoot(path string) checkResult {
	const name = "Media root"
	entries, err := os.ReadDir(path)
	if err != nil {
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			return failed(name, "%s is not a directory", path)
		}
		return failed(name, "cannot read %s: %v", path, err)
	}
	return passed(name, "%s (%d entries)", path, len(entries))
}

// checkWritableRoot verifies a destination root accepts new files. A root
// that does not exist yet is fine as long as it can be created.
func checkWritableRoot(name, path string) checkResult {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return passed(name, "%s (will be created)", path)
	case err != nil:
		return failed(name, "cannot access %s: %v", path, err)
	case !info.IsDir():
		return failed(name, "%s is not a directory", path)
	}

	probe := filepath.Join(path, ".mcat_write_test")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return failed(name, "cannot write to %s: %v", path, err)
	}
	os.Remove(probe)
	return passed(name, "%s (writable)", path)
}

// checkSameFilesystem warns when quarantining has to copy instead of rename
func checkSameFilesystem(libraryRoot, quarantineRoot string) checkResult {
	const name = "Quarantine moves"
	same, err := util.IsSameFilesystem(libraryRoot, quarantineRoot)
	switch {
	case err != nil:
		return warned(name, "cannot compare filesystems: %v", err)
	case !same:
		return warned(name, "library and quarantine are on different filesystems (moves are copies, slower)")
	}
	return passed(name, "same filesystem (instant renames)")
}

// checkDiskSpace warns below 10 GiB free or above 90% used
func checkDiskSpace(path string, label string) checkResult {
	name := fmt.Sprintf("Disk space (%s)", label)
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return warned(name, "cannot determine disk space: %v", err)
	}

	bsize := uint64(st.Bsize)
	avail := st.Bavail * bsize
	total := st.Blocks * bsize
	free := util.FormatBytes(int64(avail))

	if avail < 10<<30 {
		return warned(name, "%s available (low space!)", free)
	}
	if total > 0 && float64(total-st.Bfree*bsize)/float64(total) > 0.9 {
		return warned(name, "%s available (>90%% used)", free)
	}
	return passed(name, "%s available", free)
}
