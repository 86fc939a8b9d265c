package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	aggregatesCmd := &cobra.Command{
		Use:   "aggregates",
		Short: "Show the cross-mode summary view",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().Get("/api/aggregates"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(aggregatesCmd)

	var days int
	hebrewCmd := &cobra.Command{
		Use:   "hebrew",
		Short: "Show the Hebrew-date calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().
				SetQueryParam("days", strconv.Itoa(days)).
				Get("/api/calendar/hebrew"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	hebrewCmd.Flags().IntVarP(&days, "days", "n", 7, "Number of days to show")
	rootCmd.AddCommand(hebrewCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().Get("/api/health"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)
}
