package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"aster/internal/engine/ports"
)

func newRunCmd() *cobra.Command {
	var (
		conversationID string
		maxSteps       int
		quiet          bool
	)

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Submit a task and run it to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if conversationID == "" {
				conversationID = uuid.NewString()
			}
			task, err := a.engine.SubmitTask(ctx, conversationID, goal, maxSteps)
			if err != nil {
				return err
			}
			fmt.Printf("%s task %s\n", bold("submitted"), task.ID)

			if !quiet {
				events, cancel := a.engine.Subscribe(task.ID)
				defer cancel()
				go renderEvents(events)
			}

			result, err := a.engine.Run(ctx, task.ID)
			if err != nil {
				return err
			}

			for result.Status == ports.TaskWaitingHuman {
				result, err = answerInteractively(ctx, a, task.ID)
				if err != nil {
					return err
				}
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id (default: a new one)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget for this task (default: from config)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the live event stream")
	return cmd
}

// answerInteractively reads the answer to the task's open request from
// stdin and waits for the in-process resume to finish.
func answerInteractively(ctx context.Context, a *app, taskID string) (*ports.TaskResult, error) {
	task, err := a.engine.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != ports.TaskWaitingHuman {
		return &ports.TaskResult{TaskID: task.ID, Status: task.Status}, nil
	}

	fmt.Printf("\n%s the agent needs your input. Answer and press enter:\n> ", yellow("waiting:"))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read answer: %w", err)
	}

	if _, err := a.engine.Answer(ctx, taskID, strings.TrimSpace(line)); err != nil {
		return nil, err
	}

	return waitForStop(ctx, a, taskID)
}

// waitForStop polls the task until the asynchronous resume reaches a
// terminal status or the next suspension point.
func waitForStop(ctx context.Context, a *app, taskID string) (*ports.TaskResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		task, err := a.engine.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() || task.Status == ports.TaskWaitingHuman {
			result := &ports.TaskResult{TaskID: task.ID, Status: task.Status}
			if snap, err := a.engine.Snapshot(ctx, taskID); err == nil {
				result.FinalAnswer = snap.FinalAnswer
				result.Steps = snap.StepCount
			}
			return result, nil
		}
	}
}

func printResult(result *ports.TaskResult) {
	fmt.Println()
	switch result.Status {
	case ports.TaskCompleted:
		fmt.Printf("%s %s\n", green("completed:"), result.FinalAnswer)
	case ports.TaskWaitingHuman:
		fmt.Printf("%s task %s is waiting for a human answer\n", yellow("suspended:"), result.TaskID)
	default:
		fmt.Printf("%s status=%s reason=%s\n", red("stopped:"), result.Status, result.StopReason)
	}
	if result.Steps > 0 {
		fmt.Printf("%s\n", gray(fmt.Sprintf("steps=%d duration=%s", result.Steps, result.Duration.Round(time.Millisecond))))
	}
}
