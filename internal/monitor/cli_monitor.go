package monitor

import (
	"fmt"
	"io"
	"os"
)

// CLIMonitor implements Monitor with direct terminal output. Grounded on
// the teacher's CLIMonitor.
type CLIMonitor struct {
	writer io.Writer
}

func NewCLIMonitor() *CLIMonitor {
	return &CLIMonitor{writer: os.Stdout}
}

func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "CLI monitor active — all thread activity will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error { return nil }

func (m *CLIMonitor) OnMessage(msg Message) {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	var line string
	switch msg.MessageType {
	case "ASSISTANT":
		line = fmt.Sprintf("[assistant] %s", msg.Content)
	case "SYSTEM":
		line = fmt.Sprintf("[system] %s", msg.Content)
	default:
		line = fmt.Sprintf("[%s/%s] %s", msg.ChannelID, msg.Username, msg.Content)
	}

	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m %s\n", timestamp, line)
}
