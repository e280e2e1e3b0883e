package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"storefront/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive storefront shell",
	Long: `Run mounts the shell and opens the terminal storefront. The loading view
stays up until fonts and icons are preloaded; a failed preload can be
retried with "r". Logs go to --log-file (default storefront.log).`,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	chain := ui.NewProviderChain(app.store, app.persistor, ui.ThemeFor(cfg.Theme.IsDark))
	p := tea.NewProgram(ui.NewModel(app.sequencer, chain), tea.WithAltScreen())

	// Mount runs alongside the first render, so the preload and the client
	// wiring overlap.
	var mountFailed atomic.Bool
	mountErr := make(chan error, 1)
	go func() {
		mctx, mcancel := context.WithTimeout(ctx, cfg.Bootstrap.MountTimeout)
		defer mcancel()
		err := app.sequencer.Mount(mctx)
		if err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "mount failed, closing shell", "error", err)
			mountFailed.Store(true)
			p.Quit()
		} else if err == nil {
			app.startBridge(ctx)
		}
		mountErr <- err
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running shell: %w", err)
	}

	// Quitting early cancels a mount that is still in flight.
	cancel()
	err := <-mountErr
	if mountFailed.Load() {
		return fmt.Errorf("mount failed: %w", err)
	}
	return nil
}
