package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/blocking"
	"github.com/franz/music-catalog/internal/engine"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/util"
)

func setDefaults() {
	viper.SetDefault("ask_threshold", policy.DefaultAsk)
	viper.SetDefault("auto_threshold", policy.DefaultAuto)
	viper.SetDefault("album_auto_threshold", engine.DefaultAlbumAuto)
	viper.SetDefault("block_size", blocking.DefaultBlockSize)
	viper.SetDefault("max_blocks", blocking.DefaultMaxBlocks)
	viper.SetDefault("min_shared_blocks", blocking.DefaultMinShared)
	viper.SetDefault("api_delay", acoustid.DefaultDelay)
	viper.SetDefault("preferred_country", "US")
	viper.SetDefault("preview", true)
	viper.SetDefault("write_tags", true)
	viper.SetDefault("cleanup_empty_dirs", true)
	viper.SetDefault("event_log_dir", "artifacts")
}

// bindFlags binds the flags of the running command to their config keys.
// Commands share keys such as media_root, so this runs per command.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (MCAT_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// GetOptionalBool returns nil when key was never set anywhere
func GetOptionalBool(key string) *bool {
	if !viper.IsSet(key) {
		return nil
	}
	v := viper.GetBool(key)
	return &v
}

// settings is the resolved configuration of a catalog run
type settings struct {
	MediaRoot      string
	LibraryRoot    string
	QuarantineRoot string
	DB             string

	DryRun           bool
	Thresholds       policy.Thresholds
	AlbumAuto        float64
	Blocking         blocking.Config
	APIKey           string
	APIDelay         time.Duration
	PreferredCountry string
	FanOutAlbums     bool
	Interactive      bool
	Preview          bool
	WriteTags        bool
	CleanupEmptyDirs bool
	SkipPrune        bool
	NASMode          *bool
	EventLogDir      string

	Fpcalc  string
	FFprobe string
	FFmpeg  string
}

func loadSettings() (*settings, error) {
	s := &settings{
		MediaRoot:      viper.GetString("media_root"),
		QuarantineRoot: viper.GetString("quarantine_root"),
		DB:             GetConfigString("db", "mcat.db"),

		DryRun: GetConfigBool("dry_run"),
		Thresholds: policy.Thresholds{
			Ask:  viper.GetFloat64("ask_threshold"),
			Auto: viper.GetFloat64("auto_threshold"),
		},
		AlbumAuto: viper.GetFloat64("album_auto_threshold"),
		Blocking: blocking.Config{
			BlockSize: viper.GetInt("block_size"),
			MaxBlocks: viper.GetInt("max_blocks"),
			MinShared: viper.GetInt("min_shared_blocks"),
		},
		APIKey:           viper.GetString("api_key"),
		APIDelay:         viper.GetDuration("api_delay"),
		PreferredCountry: viper.GetString("preferred_country"),
		FanOutAlbums:     GetConfigBool("fan_out_albums"),
		Preview:          GetConfigBool("preview"),
		WriteTags:        GetConfigBool("write_tags"),
		CleanupEmptyDirs: GetConfigBool("cleanup_empty_dirs"),
		SkipPrune:        GetConfigBool("skip_prune"),
		NASMode:          GetOptionalBool("nas_mode"),
		EventLogDir:      GetConfigString("event_log_dir", "artifacts"),

		Fpcalc:  GetConfigString("fpcalc", "fpcalc"),
		FFprobe: GetConfigString("ffprobe", "ffprobe"),
		FFmpeg:  GetConfigString("ffmpeg", "ffmpeg"),
	}

	if s.MediaRoot == "" {
		return nil, fmt.Errorf("%w: media root is required (use --media-root or set media_root in config)", util.ErrInvalidConfig)
	}
	if s.QuarantineRoot == "" {
		return nil, fmt.Errorf("%w: quarantine root is required (use --quarantine-root or set quarantine_root in config)", util.ErrInvalidConfig)
	}
	s.LibraryRoot = GetConfigString("library_root", s.MediaRoot)

	if err := s.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if s.AlbumAuto <= 0 || s.AlbumAuto > 1 {
		return nil, fmt.Errorf("%w: album_auto_threshold must be in (0, 1], got %v", util.ErrInvalidConfig, s.AlbumAuto)
	}
	if s.Blocking.BlockSize <= 0 || s.Blocking.MaxBlocks <= 0 || s.Blocking.MinShared <= 0 {
		return nil, fmt.Errorf("%w: block_size, max_blocks and min_shared_blocks must be positive", util.ErrInvalidConfig)
	}

	// Prompt only when a human can answer
	if interactive := GetOptionalBool("interactive"); interactive != nil {
		s.Interactive = *interactive
	} else {
		s.Interactive = util.IsInteractive()
	}

	return s, nil
}
