package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// NetworkInfo describes whether a path lives on network storage
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // nfs, cifs, smbfs, ... or empty if local
	MountPath string // Mount point of the filesystem, when known
}

// networkFsTypes are substrings of filesystem type names that denote network storage
var networkFsTypes = []string{
	"nfs", "cifs", "smb", "afpfs", "webdav", "ncpfs", "osxfuse", "fuse.sshfs", "fuse.rclone",
}

func isNetworkFsType(name string) bool {
	name = strings.ToLower(name)
	for _, t := range networkFsTypes {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// DetectNetworkFilesystem reports whether path is on a network mount. A
// path that does not exist yet, like a library root before the first run,
// is judged by its nearest existing ancestor.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	existing, err := nearestExisting(absPath)
	if err != nil {
		return nil, err
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existing, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformNetwork(existing, &stat)
}

func nearestExisting(path string) (string, error) {
	for {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		path = parent
	}
}

// IsNetworkPath reports whether path is on a network filesystem. Detection
// failures count as local.
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}
