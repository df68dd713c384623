// Package mcp holds the static MCP descriptor table and the MCP Pipeline:
// a non-streaming LLM call with tool_choice=required against a single
// hosted MCP gateway tool, service-specific instructions, and a fallback
// chain (mail narrowed-retry → generic MCP → Agent Pipeline). Grounded
// directly on the contract in spec.md §4.H and on
// streaming_processor.py's 8-service keyword/tag vocabulary; the
// manager/session naming idiom is adapted from
// intelligencedev-manifold's internal/mcpclient/mcpclient.go, though that
// teacher manages live stdio/HTTP MCP sessions while this gateway only
// ever passes one hosted-tool descriptor into the provider's Responses
// call — there is no local MCP client connection to manage.
package mcp

import (
	"fmt"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/model"
)

const RequireApprovalNever = "never"

// Table is the static, config-loaded registry of MCP service descriptors,
// keyed by service slug (§6: file-drive, mail, task-tracker, calendar,
// docs, sheets, time-tracker, chat-bridge).
type Table struct {
	byKey map[string]*model.MCPDescriptor
}

func NewTable(services []config.MCPServiceConfig, credential string) *Table {
	t := &Table{byKey: make(map[string]*model.MCPDescriptor, len(services))}
	for _, s := range services {
		t.byKey[s.Key] = &model.MCPDescriptor{
			Key:             s.Key,
			ServerLabel:     s.ServerLabel,
			ServerURL:       s.ServerURL,
			SystemPrompt:    s.SystemPrompt,
			RouteKeywords:   s.RouteKeywords,
			TagName:         s.TagName,
			RequireApproval: RequireApprovalNever,
		}
	}
	return t
}

func (t *Table) Get(key string) (*model.MCPDescriptor, bool) {
	d, ok := t.byKey[key]
	return d, ok
}

// All returns every registered descriptor, in no particular order, for
// callers (like toolexec.Tools) that need to build one tool per service.
func (t *Table) All() []*model.MCPDescriptor {
	out := make([]*model.MCPDescriptor, 0, len(t.byKey))
	for _, d := range t.byKey {
		out = append(out, d)
	}
	return out
}

// servicePrompt returns the step-by-step usage rules for a service,
// matching the examples in spec.md §4.H (time-tracker's find-project →
// find-task → fallback-to-list → add-time chain; mail's search →
// read-top → summarise chain). Services without a bespoke prompt fall back
// to the descriptor's configured SystemPrompt.
func servicePrompt(d *model.MCPDescriptor) string {
	switch d.Key {
	case "time-tracker":
		return d.SystemPrompt + "\n\nProcedure: find the project by name, then find the task within it; " +
			"if the task cannot be found, fall back to listing all tasks and matching by closest name; " +
			"if a known task id mapping exists, prefer it; finally, log the time entry."
	case "mail":
		return d.SystemPrompt + "\n\nProcedure: search in:inbox for the relevant message, read the top " +
			"matching result, then summarise it for the user."
	default:
		return d.SystemPrompt
	}
}

// narrowedMailPrompt is the single narrowed retry issued when the mail
// service rejects for context length (§4.H, §7).
func narrowedMailPrompt(d *model.MCPDescriptor) string {
	return d.SystemPrompt + "\n\nThe previous attempt exceeded the context window. " +
		"This time: fetch only the single latest message, summarise it in two sentences, " +
		"and never return the full message body."
}

// genericPrompt is used for the generic single-MCP fallback pipeline, when
// a service-specific attempt fails for a reason other than mail's context
// overflow.
func genericPrompt(d *model.MCPDescriptor) string {
	return fmt.Sprintf("You have access to the %s integration. Use its tools as needed to satisfy "+
		"the user's request, then summarise the outcome plainly.", d.Key)
}
