package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"storefront/internal/assets"
	"storefront/internal/orchestrator"
	"storefront/internal/sequencer"
)

var outputFormat string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run the bootstrap sequence once and exit",
	Long: `Bootstrap mounts the shell (notification wiring when enabled, commerce
client init), preloads every font and icon family, prints the result and
unmounts.

The result goes to stdout as JSON or YAML; progress goes to stderr. The
command exits 0 on success or non-zero on failure.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "result format (json, yaml)")
}

// bootstrapReport is the printed form of a BootstrapResult, plus what the
// run left behind in the font loader and the notification client.
type bootstrapReport struct {
	Status      string                              `json:"status" yaml:"status"`
	Phases      map[string]orchestrator.PhaseResult `json:"phases" yaml:"phases"`
	Sequencer   sequencer.Status                    `json:"sequencer" yaml:"sequencer"`
	Fonts       []assets.Font                       `json:"fonts,omitempty" yaml:"fonts,omitempty"`
	CachedFiles int                                 `json:"cachedFiles" yaml:"cachedFiles"`
	Device      deviceReport                        `json:"device" yaml:"device"`
}

type deviceReport struct {
	DeviceID  string   `json:"deviceId" yaml:"deviceId"`
	PlayerID  string   `json:"playerId,omitempty" yaml:"playerId,omitempty"`
	Listeners []string `json:"listeners,omitempty" yaml:"listeners,omitempty"`
}

// fontSource is satisfied by *assets.Loader.
type fontSource interface {
	Families() []string
	Font(family string) (assets.Font, bool)
	Cached() int
}

// deviceSource is satisfied by *clients.NotificationClient.
type deviceSource interface {
	DeviceID() string
	PlayerID() string
	Listeners() []sequencer.EventName
}

func newBootstrapReport(r *orchestrator.BootstrapResult, fonts fontSource, device deviceSource) bootstrapReport {
	report := bootstrapReport{
		Status:      r.Status,
		Phases:      r.Phases,
		Sequencer:   r.Sequencer,
		CachedFiles: fonts.Cached(),
		Device: deviceReport{
			DeviceID: device.DeviceID(),
			PlayerID: device.PlayerID(),
		},
	}
	for _, family := range fonts.Families() {
		if f, ok := fonts.Font(family); ok {
			report.Fonts = append(report.Fonts, f)
		}
	}
	for _, name := range device.Listeners() {
		report.Device.Listeners = append(report.Device.Listeners, string(name))
	}
	sort.Strings(report.Device.Listeners)
	return report
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "yaml" {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Bootstrap.MountTimeout+cfg.Bootstrap.AssetTimeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " bootstrapping storefront"
	s.Start()

	slog.InfoContext(ctx, "starting bootstrap")
	result, err := app.orchestrator.RunBootstrap(ctx)
	s.Stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ bootstrap: %v\n", err)
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	report := newBootstrapReport(result, app.loader, app.notifications)
	printSummary(os.Stderr, report)
	if err := printReport(os.Stdout, outputFormat, report); err != nil {
		return err
	}

	if result.Status == orchestrator.StatusError {
		return fmt.Errorf("bootstrap completed with errors")
	}
	slog.InfoContext(ctx, "bootstrap completed successfully")
	return nil
}

// printSummary writes one coloured line per phase.
func printSummary(w io.Writer, r bootstrapReport) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	skip := color.New(color.FgYellow)

	for _, name := range []string{orchestrator.PhaseMount, orchestrator.PhaseAssets} {
		p, found := r.Phases[name]
		if !found {
			continue
		}
		switch p.Status {
		case orchestrator.StatusOK:
			ok.Fprintf(w, "✓ %-7s ok\n", name)
		case orchestrator.StatusSkipped:
			skip.Fprintf(w, "- %-7s skipped\n", name)
		default:
			bad.Fprintf(w, "✗ %-7s %s\n", name, p.Error)
		}
	}
	fmt.Fprintf(w, "  notifications: %s, commerce: %s\n", r.Sequencer.Notifications, r.Sequencer.Commerce)
	fmt.Fprintf(w, "  fonts: %d families from %d files\n", len(r.Fonts), r.CachedFiles)
}

func printReport(w io.Writer, format string, r bootstrapReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
