// Linkrelay mirrors a local bookmark queue to a self-hosted bookmark server.
// Saves always land in the local queue first and are drained to the server
// whenever it is reachable, so saving works the same with or without a
// network connection.
//
// Usage:
//
//	linkrelay setup                       # interactive first-run wizard
//	linkrelay daemon [--config <path>]    # background queue drainer
//	linkrelay sync-once [--config ...]    # single sync pass then exit
//	linkrelay save <url> [--title ...] [--tags a,b]
//	linkrelay delete <id>                 # delete on the server, with undo
//	linkrelay labels                      # list known labels
//	linkrelay status                      # show queue & config state
//	linkrelay version                     # print version
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkrelay/linkrelay/internal/config"
	"github.com/linkrelay/linkrelay/internal/model"
	"github.com/linkrelay/linkrelay/internal/reachability"
	"github.com/linkrelay/linkrelay/internal/remote"
	"github.com/linkrelay/linkrelay/internal/setup"
	"github.com/linkrelay/linkrelay/internal/store"
	syncp "github.com/linkrelay/linkrelay/internal/sync"
	"github.com/linkrelay/linkrelay/internal/telemetry"
	"github.com/linkrelay/linkrelay/internal/undo"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "setup":
		return runSetup()
	case "daemon":
		return runSync(args, true)
	case "sync-once":
		return runSync(args, false)
	case "save":
		return runSave(args)
	case "delete":
		return runDelete(args)
	case "labels":
		return runLabels(args)
	case "status":
		return runStatus()
	case "version":
		fmt.Println("linkrelay", version)
		return nil
	}

	return fmt.Errorf("unknown command %q — run 'linkrelay' for usage", cmd)
}

// printUsage shows help and suggests setup if no config exists.
func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "linkrelay — offline-first bookmark queue")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  linkrelay setup                       Interactive first-run wizard")
	fmt.Fprintln(os.Stderr, "  linkrelay daemon [--config ...]       Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  linkrelay sync-once [--config ...]    Single sync pass then exit")
	fmt.Fprintln(os.Stderr, "  linkrelay save <url> [--title ...] [--tags a,b]")
	fmt.Fprintln(os.Stderr, "                                        Save a bookmark (queued if offline)")
	fmt.Fprintln(os.Stderr, "  linkrelay delete <id>                 Delete a server bookmark, with undo")
	fmt.Fprintln(os.Stderr, "  linkrelay labels                      List known labels")
	fmt.Fprintln(os.Stderr, "  linkrelay status                      Show queue & config state")
	fmt.Fprintln(os.Stderr, "  linkrelay version                     Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Run 'linkrelay setup' to get started.")
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Shared wiring -----------------------------------------------------------

// app bundles the collaborators every networked subcommand needs.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *store.Store
	client *remote.Client
	reach  *reachability.Cache

	shutdownTel telemetry.ShutdownFunc
}

// openApp loads config, opens the queue DB, and wires the remote client and
// reachability cache. withTelemetry controls whether the OTLP providers are
// started; short-lived commands skip them.
func openApp(cfgPath string, verbose, withTelemetry bool) (*app, error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}

	a := &app{cfg: cfg, log: logger, shutdownTel: func(context.Context) error { return nil }}

	if withTelemetry && cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdown, telErr := telemetry.Setup(context.Background(), telCfg)
		if telErr != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", telErr)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			a.shutdownTel = shutdown
		}
	}

	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolving queue DB path: %w", err)
	}
	a.store, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening queue DB at %q: %w", dbPath, err)
	}

	a.client = remote.NewClient(cfg.ServerURL, cfg.APIToken, logger)
	a.reach = reachability.NewCache(a.client, cfg.CacheTTL, cfg.RateLimitInterval, logger)

	return a, nil
}

// close flushes telemetry and closes the queue DB.
func (a *app) close() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTel(flushCtx); err != nil {
		a.log.Error("telemetry shutdown error", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("closing queue DB", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// --- Subcommands -------------------------------------------------------------

// runSetup launches the interactive setup wizard.
func runSetup() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signalContext()
	defer stop()

	wiz := setup.NewWizard(os.Stdin, os.Stdout, logger)
	return wiz.Run(ctx)
}

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*cfgPath, *verbose, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	orch := syncp.NewOrchestrator(a.client, a.store, a.reach, a.log)

	if !daemon {
		a.log.Info("running single sync pass")
		stats, err := orch.RunSync(ctx)
		a.log.Info("sync complete", "synced", stats.Synced, "failed", stats.Failed)
		return err
	}

	watcher := reachability.NewWatcher(a.reach, a.cfg.PollInterval, a.log)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("reachability watcher", "error", err)
		}
	}()

	engine := syncp.NewEngine(orch, watcher, a.cfg.PollInterval, a.log)

	a.log.Info("daemon starting", "poll_interval", a.cfg.PollInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	a.log.Info("shutdown complete")
	return nil
}

// runSave stores a bookmark: straight to the server when reachable, into the
// local queue otherwise. Either way the command returns quickly.
func runSave(args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	title := fs.String("title", "", "bookmark title")
	tagsFlag := fs.String("tags", "", "comma-separated labels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: linkrelay save <url> [--title ...] [--tags a,b]")
	}
	url := fs.Arg(0)
	tags := model.ParseTagInput(*tagsFlag)

	a, err := openApp(*cfgPath, false, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if err := a.store.TouchLabels(ctx, tags); err != nil {
		a.log.Warn("updating label usage", "error", err)
	}

	if a.reach.Check(ctx) {
		id, createErr := a.client.CreateBookmark(ctx, url, *title, tags)
		if createErr == nil {
			fmt.Printf("✓ Saved to server (id %s)\n", id)
			return nil
		}
		a.log.Warn("direct save failed, queueing locally", "error", createErr)
	}

	b, err := a.store.UpsertBookmark(ctx, url, *title, tags)
	if err != nil {
		return fmt.Errorf("queueing bookmark: %w", err)
	}
	count, _ := a.store.PendingCount(ctx)
	fmt.Printf("✓ Queued locally (#%d) — %d bookmark(s) waiting for sync\n", b.ID, count)
	return nil
}

// runDelete deletes a server bookmark after an undo window. Pressing Enter
// before the window elapses cancels the delete.
func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: linkrelay delete <id>")
	}
	id := fs.Arg(0)

	a, err := openApp(*cfgPath, false, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	resultCh := make(chan undo.Result, 1)
	tracker := undo.NewTracker(
		a.cfg.UndoWindow,
		func(ctx context.Context, itemID string) error {
			return a.client.DeleteBookmark(ctx, itemID)
		},
		func(itemID string) {
			fmt.Printf("\n⚠ Delete of %s failed — the bookmark is still on the server.\n", itemID)
		},
		a.log,
	)
	tracker.OnResult(func(r undo.Result) { resultCh <- r })
	defer tracker.Close()

	trackingID := tracker.BeginDelete(id)
	fmt.Printf("Deleting bookmark %s in %s — press Enter to undo...\n", id, a.cfg.UndoWindow)

	// Enter cancels; the reader goroutine leaks if the window wins, which is
	// fine for a process about to exit.
	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	select {
	case <-enter:
		if tracker.Cancel(trackingID) {
			fmt.Println("✓ Delete cancelled.")
			return nil
		}
		// Window expired between keypress and Cancel; fall through to the
		// result below.
	case <-ctx.Done():
		if tracker.Cancel(trackingID) {
			fmt.Println("\n✓ Interrupted — delete cancelled.")
			return nil
		}
	case r := <-resultCh:
		return reportDelete(r)
	}

	return reportDelete(<-resultCh)
}

func reportDelete(r undo.Result) error {
	switch r.Outcome {
	case undo.OutcomeCommitted:
		fmt.Printf("✓ Bookmark %s deleted.\n", r.ItemID)
		return nil
	case undo.OutcomeCancelled:
		fmt.Println("✓ Delete cancelled.")
		return nil
	default:
		return fmt.Errorf("deleting bookmark %s: %w", r.ItemID, r.Err)
	}
}

// runLabels lists labels: live from the server when reachable, from the
// local cache otherwise.
func runLabels(args []string) error {
	fs := flag.NewFlagSet("labels", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*cfgPath, false, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	var labels []model.Label
	if a.reach.Check(ctx) {
		orch := syncp.NewOrchestrator(a.client, a.store, a.reach, a.log)
		labels, err = orch.RefreshLabels(ctx)
		if err != nil {
			return err
		}
	} else {
		fmt.Println("(server unreachable — showing cached labels)")
		labels, err = a.store.ListLabels(ctx)
		if err != nil {
			return fmt.Errorf("reading cached labels: %w", err)
		}
	}

	if len(labels) == 0 {
		fmt.Println("No labels yet.")
		return nil
	}
	for _, l := range labels {
		fmt.Printf("  %-24s %d\n", l.Name, l.UsageCount)
	}
	return nil
}

// runStatus prints queue and configuration state without touching the network.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := store.DefaultDBPath()

	fmt.Println("linkrelay status")
	fmt.Println("────────────────")

	// Config state.
	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		var loadErr error
		if cfg, loadErr = config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:   %s ✓\n", cfgPath)
			fmt.Printf("  Server:   %s\n", cfg.ServerURL)
			fmt.Printf("  Poll:     %s\n", cfg.PollInterval)
		} else {
			fmt.Printf("  Config:   %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:   not found (%s)\n", cfgPath)
		fmt.Println("\nRun 'linkrelay setup' to get started.")
		return nil
	}

	// Queue state.
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  Queue DB: %s (%s)\n", dbPath, humanSize(info.Size()))

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		s, openErr := store.Open(dbPath)
		if openErr != nil {
			logger.Warn("opening queue DB", "error", openErr)
			return nil
		}
		defer s.Close() //nolint:errcheck

		ctx := context.Background()
		if pending, countErr := s.PendingCount(ctx); countErr == nil {
			fmt.Printf("  Pending:  %d bookmark(s)\n", pending)
		}
		if labels, labelErr := s.ListLabels(ctx); labelErr == nil {
			fmt.Printf("  Labels:   %d cached\n", len(labels))
		}
	} else {
		fmt.Printf("  Queue DB: not created yet\n")
	}

	return nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
