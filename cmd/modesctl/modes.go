package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	modesCmd := &cobra.Command{Use: "modes", Short: "Mode state and control"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all modes with their resolved state",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().Get("/api/modes"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	modesCmd.AddCommand(listCmd)

	statusCmd := &cobra.Command{
		Use:   "status MODE_KEY",
		Short: "Show one mode's resolved state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().Get("/api/modes/" + args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	modesCmd.AddCommand(statusCmd)

	var duration int
	onCmd := &cobra.Command{
		Use:   "on MODE_KEY",
		Short: "Turn a mode's manual switch on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"on": true}
			if cmd.Flags().Changed("duration") {
				payload["durationMinutes"] = duration
			}
			data, err := check(newClient().R().
				SetBody(payload).
				Post("/api/modes/" + args[0] + "/manual"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	onCmd.Flags().IntVarP(&duration, "duration", "d", 0, "Activation duration in minutes (0 = no expiry)")
	modesCmd.AddCommand(onCmd)

	offCmd := &cobra.Command{
		Use:   "off MODE_KEY",
		Short: "Turn a mode's manual switch off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().
				SetBody(map[string]interface{}{"on": false}).
				Post("/api/modes/" + args[0] + "/manual"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	modesCmd.AddCommand(offCmd)

	overrideCmd := &cobra.Command{
		Use:   "override MODE_KEY on|off",
		Short: "Enable or disable a mode's calendar override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[1] == "on"
			if !enabled && args[1] != "off" {
				return fmt.Errorf("second argument must be on or off")
			}
			data, err := check(newClient().R().
				SetBody(map[string]interface{}{"enabled": enabled}).
				Post("/api/modes/" + args[0] + "/override"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	modesCmd.AddCommand(overrideCmd)

	rootCmd.AddCommand(modesCmd)
}
