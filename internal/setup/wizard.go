package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/linkrelay/linkrelay/internal/config"
	"github.com/linkrelay/linkrelay/internal/remote"
)

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt *Prompter
	logger *slog.Logger
	w      io.Writer
}

// NewWizard creates a Wizard wired to the given I/O and logger.
func NewWizard(r io.Reader, w io.Writer, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt: NewPrompter(r, w),
		logger: logger,
		w:      w,
	}
}

// Run executes the interactive setup wizard: server connection, poll
// interval, config file creation.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to linkrelay setup!\n")
	fmt.Fprintf(wiz.w, "This wizard will connect linkrelay to your bookmark server.\n\n")

	// Check for existing config.
	cfgPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: server connection.
	fmt.Fprintf(wiz.w, "Step 1/3 — Server Connection\n")

	serverURL := wiz.prompt.String("Server URL", "http://localhost:8000")
	token := wiz.prompt.Secret("API token")

	fmt.Fprintf(wiz.w, "  Connecting to server...")
	client := remote.NewClient(serverURL, token, wiz.logger)
	if err := client.HealthCheck(ctx); err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		return fmt.Errorf("cannot reach server: %w\n\n  Check the URL and token, then try again", err)
	}
	fmt.Fprintf(wiz.w, " ✓\n\n")

	// Step 2: poll interval.
	fmt.Fprintf(wiz.w, "Step 2/3 — Poll Interval\n")

	pollStr := wiz.prompt.String("How often to retry queued bookmarks? (10s–5m)", "30s")
	pollInterval, parseErr := time.ParseDuration(pollStr)
	if parseErr != nil {
		pollInterval = 30 * time.Second
		fmt.Fprintf(wiz.w, "  (invalid duration, using default 30s)\n")
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: write config.
	fmt.Fprintf(wiz.w, "Step 3/3 — Save Configuration\n")

	cfg := &config.Config{
		ServerURL:    serverURL,
		APIToken:     token,
		PollInterval: pollInterval,
	}

	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n", cfgPath)

	fmt.Fprintf(wiz.w, "\nSetup complete!\n")
	fmt.Fprintf(wiz.w, "  Save a bookmark:  linkrelay save <url>\n")
	fmt.Fprintf(wiz.w, "  Run the daemon:   linkrelay daemon\n")
	fmt.Fprintf(wiz.w, "  Check the queue:  linkrelay status\n\n")

	return nil
}
