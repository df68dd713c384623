// Package monitor provides structured logging and a broadcast interface for
// observability sinks (CLI today; a web/log sink could subscribe the same
// way). Grounded on the teacher's monitor package, migrated onto log/slog
// with a custom handler.
package monitor

import "time"

// Message is a standardized observability event. cmd/livia's CLI loop
// broadcasts one for each inbound line and assistant reply it handles; the
// Orchestrator and the pipelines emit none.
type Message struct {
	Timestamp   time.Time
	MessageType string // "USER" | "ASSISTANT" | "SYSTEM"
	ChannelID   string
	ThreadID    string
	Username    string
	Content     string
}

// Monitor is the lifecycle and message-consumption protocol for
// observability plugins.
type Monitor interface {
	Start() error
	Stop() error
	OnMessage(msg Message)
}

// SetupEnvironment initializes the global slog logger at the given level,
// prints the startup banner, and returns the default CLI monitor.
func SetupEnvironment(logLevel string) Monitor {
	SetupSlog(logLevel)
	PrintBanner()
	return NewCLIMonitor()
}
