//go:build darwin

package util

import "syscall"

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{MountPath: cString(stat.Mntonname[:])}
	if fsType := cString(stat.Fstypename[:]); isNetworkFsType(fsType) {
		info.IsNetwork = true
		info.Protocol = fsType
	}
	return info, nil
}

// cString converts a NUL-terminated int8 array
func cString(arr []int8) string {
	b := make([]byte, 0, len(arr))
	for _, c := range arr {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
