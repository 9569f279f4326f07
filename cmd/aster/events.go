package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <task-id>",
		Short: "Replay the ordered event log of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			events, err := a.engine.Replay(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no events recorded")
				return nil
			}
			for _, ev := range events {
				if line := renderEvent(ev); line != "" {
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	return cmd
}
