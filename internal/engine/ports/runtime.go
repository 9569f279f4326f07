package ports

import "time"

// Logger defines a minimal, printf-style logging contract. It matches the
// interface exposed by internal/logging so engine code can depend on either.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Hooks let collaborators observe the task lifecycle without participating
// in the loop. Both callbacks are optional and must not block.
type Hooks struct {
	OnStatusChanged func(task AgentTask, from, to TaskStatus)
	OnStepCompleted func(task AgentTask, step TaskStep)
}
