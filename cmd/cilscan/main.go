package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"cilscan/internal/config"
)

var log = commonlog.GetLogger("cilscan")

// settings shared by every subcommand, filled in by the root command.
var (
	configPath string
	verbosity  int
	logFile    string

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cilscan",
		Short:         "Static analysis of CIL method bodies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: cilscan.toml in the working directory or a parent)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "log file (default: stderr)")

	rootCmd.AddCommand(checkCmd(), dumpCmd(), cfgCmd(), rulesCmd(), convertCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and configures logging. Flags override
// the file.
func setup() error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}

	if verbosity > 0 {
		cfg.Log.Verbosity = verbosity
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if cfg.Log.File != "" {
		path := cfg.Log.File
		commonlog.Configure(cfg.Log.Verbosity, &path)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}
	if cfg.Path != "" {
		log.Debugf("config: %s", cfg.Path)
	}
	return nil
}

// sanitizeFilename maps a method name to a file name.
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"(", "_",
		")", "",
		",", "_",
	)
	s := r.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// moduleTitle is the graph title for a dump path.
func moduleTitle(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
