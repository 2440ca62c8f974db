package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/config"
	"github.com/v0xg/freshen/internal/diag"
	"github.com/v0xg/freshen/internal/headline"
	"github.com/v0xg/freshen/internal/logging"
	"github.com/v0xg/freshen/internal/notify"
	"github.com/v0xg/freshen/internal/runner"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

var (
	configFile string
	headless   bool
	profile    string
	diagDir    string
	noNotify   bool
	verbose    bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := exitCode(newRootCmd().ExecuteContext(ctx))
	stop()
	os.Exit(code)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "freshen",
		Short: "Keep a Naukri profile fresh by toggling the resume headline",
		Long: `freshen logs into Naukri, opens the profile page and toggles the trailing
period of the resume headline, so the profile counts as recently updated.

Credentials are read from NAUKRI_USERNAME and NAUKRI_PASSWORD (a .env file in
the working directory is loaded first).

Example:
  freshen --headless=false --diag-dir ./diagnostics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "Run Chrome without a window (--headless=false to watch the run)")
	rootCmd.Flags().StringVar(&profile, "profile", "", "Chrome profile directory reused between runs (default ./chrome_profile)")
	rootCmd.Flags().StringVar(&diagDir, "diag-dir", "", "Directory for failure screenshots and page dumps")
	rootCmd.Flags().BoolVar(&noNotify, "no-notify", false, "Log the result instead of showing a desktop notification")

	rootCmd.AddCommand(newToggleCmd(), newSelectorsCmd())
	return rootCmd
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <headline>",
		Short: "Print what a run would change a headline to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := headline.Preview(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", c.New)
			return nil
		},
	}
}

func newSelectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selectors",
		Short: "Print the effective selector catalogue as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}
			out, err := cat.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// runFailedError carries a finished run's failure out of cobra.
type runFailedError struct {
	err error
}

func (e *runFailedError) Error() string { return e.err.Error() }
func (e *runFailedError) Unwrap() error { return e.err }

func run(cmd *cobra.Command, args []string) error {
	// Secrets are checked before anything is launched.
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return err
	}

	base, err := logging.New(cfg.Log, nil)
	if err != nil {
		return &config.ConfigurationError{Problems: []string{err.Error()}}
	}
	log, runID := logging.ForRun(base)
	defer logging.Sync(log)

	var notifier notify.Notifier = notify.NewLog(log.Named("notify"))
	if cfg.Notify.Enabled {
		notifier = notify.NewDesktop()
	}

	bopts := cfg.BrowserOptions()
	r := runner.New(runner.Config{
		Launch: func(ctx context.Context) (browser.Page, error) {
			s, err := browser.Launch(ctx, bopts, log.Named("browser"))
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Catalog:     cat,
		Credentials: cfg.SessionCredentials(),
		Session:     cfg.SessionOptions(),
		Locator:     cfg.LocatorOptions(),
		Headline:    cfg.HeadlineOptions(),
		Timing: runner.Timing{
			EditWait:    cfg.Timing.EditWait,
			FieldWait:   cfg.Timing.FieldWait,
			SaveWait:    cfg.Timing.SaveWait,
			RenderDelay: cfg.Timing.RenderDelay,
			EditorDelay: cfg.Timing.EditorDelay,
			SaveDelay:   cfg.Timing.SaveDelay,
		},
		Snapshot:       cfg.Diag.Snapshot,
		ThumbnailWidth: cfg.Diag.ThumbnailWidth,
		Recorder:       diag.New(cfg.Diag.Dir, runID, log.Named("diag")),
		Notifier:       notifier,
		Log:            log,
	})

	res := r.Run(cmd.Context())
	if !res.Success() {
		log.Error("run failed",
			zap.Error(res.Err),
			zap.Bool("diagnostics_requested", res.DiagnosticsRequested),
			zap.Strings("artifacts", res.Artifacts))
		return &runFailedError{err: res.Err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Headline updated: %q → %q\n", res.OldValue, res.NewValue)
	return nil
}

// exitCode reports err on stderr and maps it to the process status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(os.Stderr, "Error:", err)

	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		return exitConfig
	}
	var rf *runFailedError
	if errors.As(err, &rf) {
		return exitFailed
	}
	// Anything else comes from cobra itself: unknown flags, bad arguments.
	return exitConfig
}
