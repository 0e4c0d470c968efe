package reconcile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/franz/music-catalog/internal/util"
)

// CleanupEmptyDirs removes empty directories below root, deepest first.
// root itself is kept. It returns the removed directories.
func CleanupEmptyDirs(fs afero.Fs, root string, logger *util.Logger) ([]string, error) {
	logger = util.OrDefault(logger)
	if err := CheckRoot(fs, root); err != nil {
		return nil, err
	}

	var dirs []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Debugf("Skipping %s: %v", path, err)
			return nil
		}
		if info.IsDir() && filepath.Clean(path) != filepath.Clean(root) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deepest paths first so parents emptied by the pass are removed too
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], string(filepath.Separator)), strings.Count(dirs[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return dirs[i] > dirs[j]
	})

	var removed []string
	for _, dir := range dirs {
		empty, err := afero.IsEmpty(fs, dir)
		if err != nil || !empty {
			continue
		}
		if err := fs.Remove(dir); err != nil {
			logger.Debugf("Could not remove %s: %v", dir, err)
			continue
		}
		removed = append(removed, dir)
	}

	if len(removed) > 0 {
		logger.Infof("Removed %d empty directories", len(removed))
	}
	return removed, nil
}
