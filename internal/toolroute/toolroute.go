// Package toolroute implements the Tool Router: a static keyword-priority
// table choosing which MCP service (if any) a request should be handed to
// before falling through to the native agent pipeline. Keyword vocabulary
// grounded on original_source/server/streaming_processor.py's per-service
// indicator lists (the same lists also feed the Tag Deriver's fallback
// pass, confirming these are the engine's canonical per-service keywords).
package toolroute

import (
	"strings"
)

// Service keys, in the priority order they are checked — first match wins,
// matching spec.md §4.G's static keyword-priority table.
const (
	ServiceFileDrive   = "file-drive"
	ServiceMail        = "mail"
	ServiceTaskTracker = "task-tracker"
	ServiceCalendar    = "calendar"
	ServiceDocs        = "docs"
	ServiceSheets      = "sheets"
	ServiceTimeTracker = "time-tracker"
	ServiceChatBridge  = "chat-bridge"
)

type route struct {
	service  string
	keywords []string
}

var routeTable = []route{
	{ServiceFileDrive, []string{"google drive", "my drive", "drive.google.com", "gdrive", "arquivo encontrado", "pasta encontrada"}},
	{ServiceMail, []string{"gmail", "email", "e-mail", "inbox"}},
	{ServiceTaskTracker, []string{"asana", "task board", "tarefa"}},
	{ServiceCalendar, []string{"calendar", "calendario", "agenda", "evento", "reunião", "schedule a meeting"}},
	{ServiceDocs, []string{"google docs", "documento", "docs"}},
	{ServiceSheets, []string{"sheets", "google sheets", "planilha", "spreadsheet"}},
	{ServiceTimeTracker, []string{"everhour", "tempo adicionado", "task ev:", "timesheet"}},
	{ServiceChatBridge, []string{"slack", "post to channel", "dm the team"}},
}

// Route returns the first service whose keyword list matches text, or ""
// if no static route applies (falling through to the Agent Pipeline).
// Matching is priority-ordered: file-drive before mail before task-tracker
// before calendar before docs before sheets before time-tracker before
// chat-bridge, exactly as the route table is declared.
func Route(text string) string {
	lower := strings.ToLower(text)
	for _, r := range routeTable {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.service
			}
		}
	}
	return ""
}

// denylist blocks shell metacharacters from ever reaching a tool's argument
// string, grounded on the concern named by original_source/security_utils.py.
var denylist = []string{";", "&&", "|", "`", "$(", "\n"}

// Sanitize reports whether args is safe to pass to a tool invocation.
func Sanitize(args string) bool {
	for _, bad := range denylist {
		if strings.Contains(args, bad) {
			return false
		}
	}
	return true
}
