package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change persisted shell settings",
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications [on|off]",
	Short: "Show or set whether push notifications are enabled",
	Long: `Without an argument, prints whether the next mount will wire push
notifications. With on or off, persists the choice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotificationsSetting,
}

func init() {
	settingsCmd.AddCommand(notificationsCmd)
}

func runNotificationsSetting(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 1 {
		enabled, err := parseToggle(args[0])
		if err != nil {
			return err
		}
		if err := app.settings.SetNotificationsEnabled(ctx, enabled); err != nil {
			return fmt.Errorf("saving notification setting: %w", err)
		}
	}

	enabled, err := app.settings.NotificationsAvailable(ctx)
	if err != nil {
		return fmt.Errorf("reading notification setting: %w", err)
	}
	state := color.RedString("off")
	if enabled {
		state = color.GreenString("on")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "notifications: %s\n", state)
	return nil
}

func parseToggle(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
