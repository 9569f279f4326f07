package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"aster/internal/engine"
	"aster/internal/engine/ports"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// renderEvents prints the live event stream until the channel closes.
func renderEvents(events <-chan ports.SequencedEvent) {
	for ev := range events {
		if line := renderEvent(ev); line != "" {
			fmt.Println(line)
		}
	}
}

func renderEvent(ev ports.SequencedEvent) string {
	prefix := gray(fmt.Sprintf("%4d", ev.Seq))

	switch e := ev.Event.(type) {
	case *engine.StepStartEvent:
		return fmt.Sprintf("%s %s step %d", prefix, cyan("think"), e.Seq)
	case *engine.ModelCallCompleteEvent:
		return fmt.Sprintf("%s %s tokens=%d tool_calls=%d", prefix, gray("model"), e.Usage.TotalTokens, e.ToolCallCount)
	case *engine.ToolInvokedEvent:
		label := green(e.ToolName)
		if e.ResultKind != ports.InvocationSuccess {
			label = red(fmt.Sprintf("%s (%s)", e.ToolName, e.ResultKind))
		}
		return fmt.Sprintf("%s %s %s %s", prefix, yellow("act"), label, gray(e.Duration.Round(time.Millisecond).String()))
	case *engine.ArtifactProducedEvent:
		return fmt.Sprintf("%s %s %s %s", prefix, gray("artifact"), e.Kind, gray(fmt.Sprintf("%dB %s", e.SizeBytes, e.Visibility)))
	case *engine.GoalEvaluatedEvent:
		verdict := red("not met")
		if e.Met {
			verdict = green("met")
		}
		return fmt.Sprintf("%s %s %s %s", prefix, cyan("goal"), verdict, gray(e.Rationale))
	case *engine.HITLRequestedEvent:
		return fmt.Sprintf("%s %s %s", prefix, yellow("human"), e.Prompt)
	case *engine.HITLResolvedEvent:
		return fmt.Sprintf("%s %s request %s", prefix, yellow("human"), e.Status)
	case *engine.TaskStatusEvent:
		return fmt.Sprintf("%s %s %s -> %s", prefix, gray("status"), e.From, bold(string(e.To)))
	case *engine.ErrorEvent:
		return fmt.Sprintf("%s %s [%s] %s", prefix, red("error"), e.Kind, e.Error)
	case *engine.TaskCompleteEvent:
		return fmt.Sprintf("%s %s status=%s reason=%s", prefix, bold("done"), e.Status, e.StopReason)
	case *ports.EventRecord:
		return fmt.Sprintf("%s %s %s", prefix, gray(e.Type), gray(e.EventCategory))
	}
	return ""
}
