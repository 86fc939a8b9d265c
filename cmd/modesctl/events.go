package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	eventsCmd := &cobra.Command{Use: "events", Short: "Calendar event operations"}

	var from, to string
	listCmd := &cobra.Command{
		Use:   "list MODE_KEY",
		Short: "List a mode's calendar events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := newClient().R()
			if from != "" || to != "" {
				req.SetQueryParams(map[string]string{"from": from, "to": to})
			}
			data, err := check(req.Get("/api/modes/" + args[0] + "/events"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339)")
	listCmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339)")
	eventsCmd.AddCommand(listCmd)

	var start, end, summary, description string
	createCmd := &cobra.Command{
		Use:   "create MODE_KEY",
		Short: "Create a calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endAt, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			data, err := check(newClient().R().
				SetBody(map[string]interface{}{
					"start":       startAt,
					"end":         endAt,
					"summary":     summary,
					"description": description,
				}).
				Post("/api/modes/" + args[0] + "/events"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVar(&start, "start", "", "Event start (RFC 3339, required)")
	createCmd.Flags().StringVar(&end, "end", "", "Event end (RFC 3339, required)")
	createCmd.Flags().StringVarP(&summary, "summary", "s", "", "Event summary")
	createCmd.Flags().StringVar(&description, "description", "", "Event description")
	_ = createCmd.MarkFlagRequired("start")
	_ = createCmd.MarkFlagRequired("end")
	eventsCmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete MODE_KEY EVENT_ID",
		Short: "Delete a calendar event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := check(newClient().R().
				Delete("/api/modes/" + args[0] + "/events/" + args[1]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "deleted")
			return nil
		},
	}
	eventsCmd.AddCommand(deleteCmd)

	sensorsCmd := &cobra.Command{
		Use:   "sensors MODE_KEY",
		Short: "List a mode's event sensors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := check(newClient().R().Get("/api/modes/" + args[0] + "/sensors"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	eventsCmd.AddCommand(sensorsCmd)

	rootCmd.AddCommand(eventsCmd)
}
