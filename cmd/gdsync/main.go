package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atulpatildbz/groq-speech-to-text/internal/app"
	"github.com/atulpatildbz/groq-speech-to-text/internal/config"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SyncApp. The caller must defer app.Close().
func newApp(noInput bool) (*app.SyncApp, error) {
	if err := app.LoadDotenv(); err != nil {
		return nil, err
	}

	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSyncApp(cfg, noInput)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// in-flight run can finish its current asset before the loop exits.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "gdsync",
	Short:        "Cross-account audio transcription sync",
	SilenceUsage: true,
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

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("\nNext steps: place the OAuth client credential files referenced in the")
		fmt.Println("config, then run \"gdsync auth\" to authorize both accounts.")
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

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:        %s\n", cfg.HostID)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Source account: %s (folder %s)\n", accountType(cfg.Accounts.Source), cfg.Accounts.Source.Folder())
		fmt.Printf("Dest account:   %s (folder %s)\n", accountType(cfg.Accounts.Dest), cfg.Accounts.Dest.Folder())
		fmt.Printf("Threshold:      %d day(s)\n", cfg.Sync.DaysThreshold)
		fmt.Printf("Interval:       %s\n", cfg.Sync.Interval())
		fmt.Printf("Size limit:     %d bytes\n", cfg.Sync.SizeLimitBytes)
		return nil
	},
}

func accountType(c config.AccountConfig) string {
	if c.Type == "" {
		return "drive"
	}
	return c.Type
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize storage accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := a.Authorize(ctx, account); err != nil {
			return err
		}
		fmt.Println("Authorization complete.")
		return nil
	},
}

var authResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored account tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetAuth(account); err != nil {
			return err
		}
		fmt.Println("Stored tokens removed. Run \"gdsync auth\" to re-authorize.")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one transcription pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		noInput, _ := cmd.Flags().GetBool("no-input")
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp(noInput)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("days") {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			a.SetThresholdDays(days)
		}

		ctx, cancel := signalContext()
		defer cancel()

		report, err := a.Sync(ctx)
		if err != nil {
			return err
		}

		printReport(report)

		if _, failed, _ := report.Counts(); failed > 0 {
			return fmt.Errorf("%d asset(s) failed", failed)
		}
		return nil
	},
}

func printReport(report *gdsync.RunReport) {
	succeeded, failed, skipped := report.Counts()
	fmt.Printf("Run finished in %s: %d succeeded, %d failed, %d skipped\n",
		report.FinishedAt.Sub(report.StartedAt).Truncate(time.Millisecond),
		succeeded, failed, skipped)

	for _, o := range report.Outcomes {
		if o.Status != gdsync.StatusFailed {
			continue
		}
		fmt.Printf("  FAILED %s at %s: %v\n", o.Asset.Name, o.Stage, o.Err)
	}
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run transcription passes on an interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetInt("interval")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("interval") {
			a.SetIntervalHours(interval)
		}

		ctx, cancel := signalContext()
		defer cancel()

		return a.Schedule(ctx)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %s  ok:%d fail:%d skip:%d\n",
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond),
				run.Succeeded, run.Failed, run.Skipped,
			)
			for _, f := range run.Failures {
				fmt.Printf("    %s at %s: %s\n", f.Asset, f.Stage, f.Reason)
			}
		}
		return nil
	},
}

// transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE...",
	Short: "Transcribe local audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		failures := 0
		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			res, err := a.TranscribeLocal(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Printf("FAILED %s: %v\n", arg, err)
				failures++
				continue
			}

			fmt.Printf("%s -> %s (%.1fs", arg, res.OutputPath, res.Transcription.DurationSeconds)
			if res.Transcription.Language != "" {
				fmt.Printf(", %s", res.Transcription.Language)
			}
			fmt.Println(")")
		}

		if failures > 0 {
			return fmt.Errorf("%d file(s) failed", failures)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// auth subcommands and flags
	authCmd.AddCommand(authResetCmd)
	authCmd.Flags().String("account", "", "Limit to one account: source or dest")
	authResetCmd.Flags().String("account", "", "Limit to one account: source or dest")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Int("days", -1, "Override the staleness threshold in days (0 = reprocess everything)")
	syncCmd.Flags().Bool("no-input", false, "Fail instead of prompting for authorization")
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().Int("interval", 0, "Override the sync interval in hours (floor 2)")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(transcribeCmd)
}
