// Package tags derives the ordered, de-duplicated capability tag list shown
// in a response header ("`⛭ gpt-4.1-mini` `Vision` `WebSearch`"). Grounded
// directly on original_source/server/streaming_processor.py's
// derive_cumulative_tags / get_initial_cumulative_tags / format_tags_display.
//
// Per spec.md §9's REDESIGN FLAG, structured tool-call events are always
// checked first; the keyword/content heuristics below exist purely as a
// fallback for signals structured events don't carry (e.g. a response that
// quotes a web page without an explicit web_search tool call appearing in
// this turn), never as the primary mechanism.
package tags

import (
	"regexp"
	"strings"

	"github.com/livia-chatops/livia/internal/model"
)

const (
	ModelDefault  = "gpt-4.1-mini"
	ModelVision   = "gpt-4o"
	ModelThinking = "o3-mini"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

func isExternalURL(text string) bool {
	for _, m := range urlPattern.FindAllString(text, -1) {
		if !strings.Contains(m, "drive.google.com") && !strings.Contains(m, "docs.google.com") && !strings.Contains(m, "calendar.google.com") {
			return true
		}
	}
	return false
}

var webIndicators = []string{
	"brandcolorcode.com", "wikipedia.org", "bing.com",
	"utm_source=openai", "search result", "according to", "source:",
	"based on search", "found on", "website", "search engine",
}

// mcpIndicator groups the fuzzy keyword list used to infer that an MCP
// service participated in a turn from the response/user text alone.
type mcpIndicator struct {
	tag      string
	keywords []string
}

var mcpIndicators = []mcpIndicator{
	{"McpGoogleDrive", []string{"google drive", "my drive", "drive.google.com", "arquivo encontrado", "pasta encontrada", "gdrive"}},
	{"McpEverhour", []string{"everhour", "tempo adicionado", "task ev:", "ev:"}},
	{"McpAsana", []string{"asana"}},
	{"McpGmail", []string{"gmail"}},
	{"McpGoogleDocs", []string{"google docs", "documento"}},
	{"McpGoogleCalendar", []string{"calendar", "calendario", "agenda", "evento", "reunião"}},
	{"McpGoogleSheets", []string{"sheets", "google sheets", "planilha", "spreadsheet"}},
}

// toolMCPTag maps a tool-call name/type substring match to its cumulative
// tag, in the priority order streaming_processor.py checks them.
func toolMCPTag(name string) (string, bool) {
	switch {
	case strings.Contains(name, "everhour"):
		return "McpEverhour", true
	case strings.Contains(name, "asana"):
		return "McpAsana", true
	case strings.Contains(name, "gmail"):
		return "McpGmail", true
	case strings.Contains(name, "google"), strings.Contains(name, "drive"), strings.Contains(name, "gdrive"):
		return "McpGoogleDrive", true
	case strings.Contains(name, "calendar"):
		return "McpGoogleCalendar", true
	case strings.Contains(name, "docs"):
		return "McpGoogleDocs", true
	case strings.Contains(name, "sheets"):
		return "McpGoogleSheets", true
	case strings.Contains(name, "slack"):
		return "McpSlack", true
	default:
		return "", false
	}
}

// Derive builds the cumulative tag set for a (possibly still in-progress)
// turn. toolCalls carries every tool call observed so far this turn;
// finalResponse/userMessage are used only for the fuzzy fallback pass.
func Derive(toolCalls []model.ToolCall, hasAudio, hasImages bool, userMessage, finalResponse, modelName string) *model.TagSet {
	ts := model.NewTagSet()

	thinkingUsed := false
	for _, c := range toolCalls {
		n := strings.ToLower(c.Name)
		if strings.Contains(n, "deep_thinking_analysis") || strings.Contains(n, "thinking") {
			thinkingUsed = true
			break
		}
	}

	switch {
	case thinkingUsed:
		ts.Add(ModelThinking)
	case hasImages:
		ts.Add(ModelVision)
	default:
		ts.Add(modelName)
	}

	if hasImages {
		ts.Add("Vision")
	}
	if hasAudio {
		ts.Add("AudioTranscribe")
	}

	for _, c := range toolCalls {
		n := strings.ToLower(c.Name)
		switch {
		case strings.Contains(n, "web_search"):
			ts.Add("WebSearch")
		case n == "image_generation_tool":
			ts.Add("ImageGen")
		case strings.Contains(n, "deep_thinking_analysis"), strings.Contains(n, "thinking"):
			ts.Add("Thinking")
		case strings.Contains(n, "mcp"):
			if tag, ok := toolMCPTag(n); ok {
				ts.Add(tag)
			}
		}
		// file_search is always-active RAG background work and deliberately
		// never surfaced as a tag.
	}

	combined := strings.ToLower(finalResponse + " " + userMessage)

	hasWebIndicator := false
	for _, ind := range webIndicators {
		if strings.Contains(combined, ind) {
			hasWebIndicator = true
			break
		}
	}
	if (isExternalURL(finalResponse) && hasWebIndicator) ||
		strings.Contains(combined, "brandcolorcode.com") || strings.Contains(combined, "utm_source=openai") {
		ts.Add("WebSearch")
	}

	for _, mi := range mcpIndicators {
		for _, kw := range mi.keywords {
			if strings.Contains(combined, kw) {
				ts.Add(mi.tag)
				break
			}
		}
	}

	return ts
}

var imageGenKeywords = []string{
	"gere uma imagem", "gerar imagem", "criar imagem", "desenhe", "desenhar",
	"faça uma imagem", "fazer imagem", "generate image", "create image", "draw",
}

var thinkingKeywords = []string{
	"+think", "thinking", "análise profunda", "análise detalhada",
	"brainstorm", "brainstorming", "resolução de problema",
	"estratégia", "decisão", "reflexão", "pensar", "analisar",
	"problema complexo", "solução criativa", "insights",
}

// InitialTags computes the tag header shown before any model call has
// happened, from keyword heuristics over the inbound text alone. Grounded
// on get_initial_cumulative_tags.
func InitialTags(text string, hasAudio, hasImages bool, modelName string) *model.TagSet {
	ts := model.NewTagSet()
	lower := strings.ToLower(text)

	thinkingWillBeUsed := containsAny(lower, thinkingKeywords)
	isImageGen := containsAny(lower, imageGenKeywords)

	switch {
	case thinkingWillBeUsed:
		ts.Add(ModelThinking)
		ts.Add("Thinking")
	case hasImages:
		ts.Add(ModelVision)
	default:
		ts.Add(modelName)
	}

	if isImageGen {
		ts.Add("ImageGen")
	}
	if hasAudio {
		ts.Add("AudioTranscribe")
	}
	if hasImages && !isImageGen {
		ts.Add("Vision")
	}

	return ts
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Format renders tags as "`⛭ tag0` `tag1` `tag2`", position 0 gear-prefixed,
// the rest plain-backtick. Grounded verbatim on format_tags_display.
func Format(tagList []string) string {
	parts := make([]string, len(tagList))
	for i, t := range tagList {
		if i == 0 {
			parts[i] = "`⛭ " + t + "`"
		} else {
			parts[i] = "`" + t + "`"
		}
	}
	return strings.Join(parts, " ")
}
