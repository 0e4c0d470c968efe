package util

import (
	"os"
	"syscall"
)

// IsSameFilesystem reports whether two paths share a device, so that a
// move between them is a rename rather than a copy. Paths that do not
// exist yet are resolved to their nearest existing ancestor. When device
// IDs are unavailable the answer is false.
func IsSameFilesystem(path1, path2 string) (bool, error) {
	dev1, ok1, err := deviceOf(path1)
	if err != nil {
		return false, err
	}
	dev2, ok2, err := deviceOf(path2)
	if err != nil {
		return false, err
	}
	if !ok1 || !ok2 {
		return false, nil
	}
	return dev1 == dev2, nil
}

func deviceOf(path string) (uint64, bool, error) {
	existing, err := nearestExisting(path)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Stat(existing)
	if err != nil {
		return 0, false, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false, nil
	}
	return uint64(st.Dev), true, nil
}
