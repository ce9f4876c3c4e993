package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// Version is overridden at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile    string
	verbose    bool
	logFile    string
	noCache    bool
	showChrome bool
	httpProxy  string
	httpsProxy string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rightsprobe",
	Short: "rightsprobe - Look up artists in the unmatched-rights lists",
	Long: `rightsprobe checks whether artists, performers or sound recording owners
appear in SoundExchange's unregistered-rights lists.

Each term is searched in four categories:
  UA    Unregistered Artists
  PUA   Partially Unregistered Artists
  UP    Unregistered Performers
  USRO  Unregistered Sound Recording Owners

A headless browser solves the site's anti-bot challenge once per run; the
searches themselves go through a plain HTTP session carrying that token.
Results can be exported to CSV/JSON and appended to a spreadsheet or a local
store without duplicating rows.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rightsprobe %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.rightsprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable token and search caches (force a fresh browser session)")
	rootCmd.PersistentFlags().BoolVar(&showChrome, "show-browser", false, "run Chrome with a visible window")
	rootCmd.PersistentFlags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	rootCmd.PersistentFlags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".rightsprobe"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match RIGHTSPROBE_*
	viper.SetEnvPrefix("RIGHTSPROBE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults,
// then applies the global flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if noCache {
		cfg.Cache.Enabled = false
	}
	if showChrome {
		cfg.Browser.Headless = false
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the text logger on stderr, mirrored to --log-file when set.
// The returned closer releases the log file.
func newLogger(cfg *model.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closer, nil
}
