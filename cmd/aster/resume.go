package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a suspended task whose human request was answered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			events, cancel := a.engine.Subscribe(args[0])
			defer cancel()
			go renderEvents(events)

			result, err := a.engine.Resume(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	return cmd
}

func newAnswerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer <task-id> <answer>",
		Short: "Answer a task's open human request",
		Long: `Answer settles the open request and folds the answer into the task's
context. Answering twice is a no-op. Run "aster resume" afterwards to
continue the task when it was suspended by another process.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			answer := ""
			for i, arg := range args[1:] {
				if i > 0 {
					answer += " "
				}
				answer += arg
			}

			req, err := a.engine.Answer(ctx, args[0], answer)
			if err != nil {
				return err
			}
			fmt.Printf("request %s is now %s\n", req.ID, req.Status)

			// The answer kicks off an in-process resume; wait for the task
			// to reach its next stopping point before exiting so the loop
			// is not cut off mid-step.
			result, err := waitForStop(ctx, a, args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	return cmd
}
