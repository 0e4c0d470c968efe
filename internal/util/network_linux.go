//go:build linux

package util

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Kernel superblock magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x01021994: "smbfs",
	0x564c:     "ncp",
}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}
	if proto, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	// FUSE mounts (sshfs, rclone) only show up in the mount table
	mounts, err := parseProcMounts()
	if err != nil {
		return info, nil
	}
	if mountPoint, fsType := matchMount(path, mounts); mountPoint != "" {
		info.MountPath = mountPoint
		if isNetworkFsType(fsType) {
			info.IsNetwork = true
			info.Protocol = strings.ToLower(fsType)
		}
	}
	return info, nil
}

// matchMount returns the deepest mount point containing path
func matchMount(path string, mounts map[string]string) (string, string) {
	best, bestType := "", ""
	for mountPoint, fsType := range mounts {
		if !within(path, mountPoint) || len(mountPoint) <= len(best) {
			continue
		}
		best, bestType = mountPoint, fsType
	}
	return best, bestType
}

func within(path, dir string) bool {
	if dir == "/" || path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// parseProcMounts maps mount points to filesystem types
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	return mounts, scanner.Err()
}
