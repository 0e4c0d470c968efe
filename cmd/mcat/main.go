package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/music-catalog/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "mcat",
		Short: "Music Catalog - fingerprint, deduplicate and file your music",
		Long: `mcat (Music Catalog) identifies audio files by their acoustic fingerprint,
keeps the best copy of every recording in a catalog, files it under its
release and moves lesser copies to a quarantine folder.

Runs are incremental: unchanged files are skipped, and running twice over
the same library changes nothing the second time.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// persistentFlagKeys maps global flags to their config keys
var persistentFlagKeys = map[string]string{
	"db":       "db",
	"verbose":  "verbose",
	"quiet":    "quiet",
	"no-color": "no_color",
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./configs/mcat.yaml or ./mcat.yaml)")
	pf.String("db", "mcat.db", "catalog database file")
	pf.BoolP("verbose", "v", false, "log debug messages")
	pf.BoolP("quiet", "q", false, "log errors only")
	pf.Bool("no-color", false, "disable colored output")
	for flag, key := range persistentFlagKeys {
		viper.BindPFlag(key, pf.Lookup(flag))
	}

	setDefaults()
}

func initConfig() {
	if cfgFile == "" {
		viper.SetConfigName("mcat")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(cfgFile)
	}

	// MCAT_MEDIA_ROOT, MCAT_API_KEY, ...
	viper.SetEnvPrefix("MCAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	readErr := viper.ReadInConfig()

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no_color") || os.Getenv("NO_COLOR") != "" {
		util.Default().SetColors(false)
	}

	var notFound viper.ConfigFileNotFoundError
	switch {
	case readErr == nil:
		util.DebugLog("config: %s", viper.ConfigFileUsed())
	case !errors.As(readErr, &notFound):
		util.WarnLog("ignoring config file: %v", readErr)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
