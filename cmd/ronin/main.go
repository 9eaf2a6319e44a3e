package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ronin-go/internal/app"
	"ronin-go/internal/config"
	"ronin-go/internal/ronin"
	"ronin-go/internal/snapshot"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// newApp reads the config and creates a RoninApp for the source directory
// named by args. The caller must defer app.Close().
func newApp(cmd *cobra.Command, args []string, dryRun bool) (*app.RoninApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := app.LoadConfig(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	logFile, _ := cmd.Flags().GetString("logfile")
	verbose, _ := cmd.Flags().GetBool("verbose")
	opts := app.Options{DryRun: dryRun, LogFile: logFile, Verbose: verbose}
	if len(args) > 0 {
		opts.SourceDir = args[0]
	}

	a, err := app.NewRoninApp(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "ronin",
	Short:        "Synchronize a directory to its configured destination",
	SilenceUsage: true,
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [TARGET]",
	Short: "Synchronize TARGET once",
	Long:  "Synchronize the directory TARGET (default: the working directory) using its ronin.toml or ronin.json manifest.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd, args, dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		run, err := a.Sync(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synchronized %s -> %s\n", run.Source, run.Target)
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch [TARGET]",
	Short: "Synchronize TARGET whenever it changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		poll, _ := cmd.Flags().GetBool("poll")
		interval, _ := cmd.Flags().GetDuration("interval")
		maxFailures, _ := cmd.Flags().GetInt("max-failures")
		noInitial, _ := cmd.Flags().GetBool("no-initial-sync")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd, args, dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		return a.Watch(ctx, app.WatchOptions{
			Poll:        poll,
			Interval:    interval,
			MaxFailures: maxFailures,
			InitialSync: !noInitial,
		})
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot [TARGET]",
	Short: "Show what ronin sees in TARGET",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diffAfter, _ := cmd.Flags().GetDuration("diff-after")

		a, err := newApp(cmd, args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if diffAfter <= 0 {
			snap, err := a.Snapshot()
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		}

		ctx, stop := signalContext()
		defer stop()
		fmt.Printf("Watching %s for %s...\n", a.Request().Source, diffAfter)
		_, diff, err := a.DiffAfter(ctx, diffAfter)
		if err != nil {
			return err
		}
		printDiff(diff)
		return nil
	},
}

func printSnapshot(snap *snapshot.Snapshot) {
	fmt.Printf("Root:     %s\n", snap.Root())
	fmt.Printf("Entries:  %d\n", snap.Len())
	for _, ex := range snap.Excluded() {
		fmt.Printf("Excluded: %s\n", ex)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range snap.Paths() {
		e, _ := snap.Entry(p)
		kind := "f"
		switch {
		case e.IsDir:
			kind = "d"
		case e.Mode.Type()&os.ModeSymlink != 0:
			kind = "l"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", kind, e.ID, e.Size, e.ModTime.Format("2006-01-02 15:04:05"), p)
	}
	w.Flush()
}

func printDiff(d *snapshot.Diff) {
	if d.Empty() {
		fmt.Println("No changes.")
		return
	}
	for _, p := range d.Created {
		fmt.Printf("created   %s\n", p)
	}
	for _, p := range d.Deleted {
		fmt.Printf("deleted   %s\n", p)
	}
	for _, p := range d.Modified {
		fmt.Printf("modified  %s\n", p)
	}
	for _, m := range d.Moved {
		suffix := ""
		if m.Modified {
			suffix = " (modified)"
		}
		fmt.Printf("moved     %s -> %s%s\n", m.From, m.To, suffix)
	}
	fmt.Println(d)
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent sync runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		export, _ := cmd.Flags().GetString("export")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := app.LoadConfig(defaults["config_path"], defaults["base_dir"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		if export != "" {
			if err := app.ExportHistory(cfg, export); err != nil {
				return err
			}
			fmt.Printf("History exported to %s\n", export)
			return nil
		}

		runs, err := app.ListHistory(cfg, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			exit := "-"
			if r.ExitCode.Valid {
				exit = fmt.Sprint(r.ExitCode.Int64)
			}
			fmt.Printf("%s  %-5s  %-8s  exit=%-3s  %-8s  +%d -%d ~%d >%d  %s -> %s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Trigger,
				r.Status,
				exit,
				duration,
				r.Changes.Created, r.Changes.Deleted, r.Changes.Modified, r.Changes.Moved,
				r.Source,
				r.Target,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := app.LoadConfig(defaults["config_path"], defaults["base_dir"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("History:       %s %s\n", cfg.History.Type, cfg.History.DataDir)
		fmt.Printf("Poll Interval: %s\n", cfg.Watch.PollInterval)
		fmt.Printf("Max Failures:  %d\n", cfg.Watch.MaxFailures)
		fmt.Printf("Poll:          %t\n", cfg.Watch.Poll)
		fmt.Printf("Shallow:       %t\n", cfg.Watch.Shallow)
		fmt.Printf("Ignore:        %s\n", strings.Join(cfg.Filesystem.Ignore, ", "))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("logfile", "l", "", "Use FILENAME as the log file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("dry-run", false, "Log the transfer command instead of running it")

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("poll", false, "Poll for changes instead of using filesystem events")
	watchCmd.Flags().Duration("interval", 0, "Polling interval (default from config)")
	watchCmd.Flags().Int("max-failures", 0, "Consecutive failed snapshots before giving up (default from config)")
	watchCmd.Flags().Bool("no-initial-sync", false, "Skip the sync at startup")
	watchCmd.Flags().Bool("dry-run", false, "Log transfer commands instead of running them")

	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().Duration("diff-after", 0, "Take a second snapshot after this long and print the differences")

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	historyCmd.Flags().String("export", "", "Write a copy of the history database to this path")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
}

// exitCode maps fatal errors to distinct process statuses.
func exitCode(err error) int {
	var invErr *ronin.SyncInvocationError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &invErr):
		return 2
	case ronin.IsFatal(err):
		return 3
	}
	return 1
}
