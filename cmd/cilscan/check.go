package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cilscan/internal/config"
	"cilscan/internal/engine"
	"cilscan/internal/loader"
	"cilscan/internal/output"
	"cilscan/internal/rules"
	"cilscan/internal/watchdog"
)

// moduleSummary is one entry of the --summary document.
type moduleSummary struct {
	Path         string         `json:"path"`
	Module       string         `json:"module"`
	Types        int            `json:"types"`
	Methods      int            `json:"methods"`
	Instructions int            `json:"instructions"`
	Skipped      int            `json:"skipped"`
	Faults       []string       `json:"faults,omitempty"`
	Violations   map[string]int `json:"violations"`
}

func checkCmd() *cobra.Command {
	var (
		format   string
		database string
		disable  []string
		timeout  time.Duration
		summary  string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "check [flags] dump...",
		Short: "Run every enabled rule over module dumps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("format") {
				cfg.Report.Format = format
			}
			if database != "" {
				cfg.Report.Database = database
			}
			if timeout > 0 {
				cfg.Watchdog.Timeout = config.Duration(timeout)
			}
			cfg.Rules.Disabled = append(cfg.Rules.Disabled, disable...)
			if err := cfg.Validate(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			return runCheck(args, w, summary)
		},
	}

	cmd.Flags().StringVar(&format, "format", config.FormatText, "violation format: text or jsonl")
	cmd.Flags().StringVar(&database, "db", "", "also store violations in this SQLite database")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "check IDs to disable (comma separated)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "watchdog timeout per type or method body")
	cmd.Flags().StringVar(&summary, "summary", "", "write per-module statistics as JSON to this file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write violations to this file (default: stdout)")
	return cmd
}

func runCheck(paths []string, w io.Writer, summaryPath string) error {
	var writer *output.Writer
	if cfg.Report.Format == config.FormatJSONL {
		writer = output.NewJSONLWriter(w)
	} else {
		writer = output.NewTextWriter(w)
	}
	counts := &countingReporter{counts: make(map[string]int)}
	reporter := output.Tee{writer, counts}

	var store *output.Store
	if cfg.Report.Database != "" {
		var err error
		store, err = output.OpenStore(cfg.Report.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		reporter = append(reporter, store)
	}

	enabled := rules.Select(rules.All(reporter), cfg.Rules.Disabled)
	wd := watchdog.New(watchdog.Options{Timeout: time.Duration(cfg.Watchdog.Timeout)})
	defer wd.Shutdown()

	d, err := engine.NewDispatcher(engine.Options{Watchdog: wd}, enabled...)
	if err != nil {
		var re *engine.RegistrationError
		if errors.As(err, &re) {
			log.Errorf("rule registration failed: %s", err)
		}
		return err
	}
	log.Infof("%d rules enabled, watchdog %s", len(enabled), time.Duration(cfg.Watchdog.Timeout))

	var summaries []moduleSummary
	for _, path := range paths {
		wd.Announce("load " + filepath.Base(path))
		mod, err := loader.Load(path)
		if err != nil {
			return err
		}
		writer.SetModule(mod.Name)
		if store != nil {
			if err := store.BeginRun(mod.Name); err != nil {
				return err
			}
		}

		counts.reset()
		stats, err := d.Run(mod)
		if err != nil {
			return err
		}
		s := moduleSummary{
			Path:         path,
			Module:       mod.Name,
			Types:        stats.Types,
			Methods:      stats.Methods,
			Instructions: stats.Instructions,
			Skipped:      stats.Skipped,
			Violations:   counts.snapshot(),
		}
		for _, f := range stats.Faults {
			s.Faults = append(s.Faults, f.Error())
		}
		summaries = append(summaries, s)
	}

	if err := writer.Err(); err != nil {
		return err
	}
	if store != nil {
		if err := store.Err(); err != nil {
			return err
		}
		totals, err := store.Counts()
		if err != nil {
			return err
		}
		log.Infof("%s: %d checks with stored violations", cfg.Report.Database, len(totals))
	}
	log.Infof("%d violations in %d modules", writer.Count(), len(paths))

	if summaryPath != "" {
		if err := output.WriteJSON(summaryPath, summaries); err != nil {
			return err
		}
	}
	return nil
}

// countingReporter counts violations per check ID for the current module.
type countingReporter struct {
	counts map[string]int
}

func (c *countingReporter) Report(v engine.Violation) { c.counts[v.CheckID]++ }

func (c *countingReporter) reset() { c.counts = make(map[string]int) }

func (c *countingReporter) snapshot() map[string]int {
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
