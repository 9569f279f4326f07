package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aster/internal/logging"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "aster",
		Short: "Aster runs agent tasks against a tool catalogue",
		Long: `Aster drives goal-directed tasks through a reasoning loop: the model
thinks, acts through tools, observes the results and stops when an
independent goal check passes. Tasks can pause for human input and be
resumed later, even from another process.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logging.SetDefaultLevel(logging.ParseLevel(logLevel))
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./aster.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newAnswerCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
