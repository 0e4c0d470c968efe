package util

import (
	"fmt"
)

// StorageProfile holds file operation settings tuned to the storage the
// catalogued files live on
type StorageProfile struct {
	CheckWorkers int          // concurrent existence checks while pruning
	BufferSize   int          // copy buffer in bytes
	Retry        *RetryConfig // nil when file operations are not retried
	IsNASMode    bool
	DetectedInfo *NetworkInfo
}

// Defaults for local disks
const (
	defaultCheckWorkers = 8
	defaultBufferSize   = 128 * 1024
)

// LocalStorageProfile returns the settings for local disks
func LocalStorageProfile() *StorageProfile {
	return &StorageProfile{
		CheckWorkers: defaultCheckWorkers,
		BufferSize:   defaultBufferSize,
	}
}

// TuneForPaths detects whether any of paths is on network storage and
// returns matching settings. A non-nil nasMode overrides detection.
func TuneForPaths(paths []string, nasMode *bool, logger *Logger) *StorageProfile {
	logger = OrDefault(logger)
	p := LocalStorageProfile()

	if nasMode != nil {
		if *nasMode {
			applyNASOptimizations(p)
			logger.Infof("NAS mode: explicitly enabled via config/flag")
		} else {
			logger.Debugf("NAS mode: explicitly disabled via config/flag")
		}
		return p
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := DetectNetworkFilesystem(path)
		if err != nil {
			logger.Debugf("Failed to detect filesystem for %s: %v", path, err)
			continue
		}
		if info.IsNetwork {
			p.DetectedInfo = info
			applyNASOptimizations(p)
			logger.Infof("Network filesystem detected: %s is on %s (%s)", path, info.Protocol, info.MountPath)
			logger.Infof("TIP: Use --nas-mode=false to disable auto-tuning")
			return p
		}
	}

	logger.Debugf("Local filesystem detected - using standard settings")
	return p
}

// applyNASOptimizations trades parallelism for fewer connections and
// retries transient failures
func applyNASOptimizations(p *StorageProfile) {
	p.IsNASMode = true
	p.CheckWorkers = 4
	p.BufferSize = 256 * 1024
	p.Retry = NASRetryConfig()
}

// FormatNASSettings returns a human-readable description of p
func FormatNASSettings(p *StorageProfile) string {
	if !p.IsNASMode {
		return "NAS mode: disabled (local filesystem)"
	}

	protocol := "unknown"
	mountPath := "unknown"
	if p.DetectedInfo != nil {
		protocol = p.DetectedInfo.Protocol
		mountPath = p.DetectedInfo.MountPath
	}

	return fmt.Sprintf(`NAS mode: enabled
  Protocol: %s
  Mount: %s
  Existence checks: %d workers
  Buffer: %dKB
  Retries: %d`,
		protocol, mountPath,
		p.CheckWorkers, p.BufferSize/1024, p.Retry.MaxAttempts)
}
