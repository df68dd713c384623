package tags

import (
	"testing"

	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDerive_DefaultModelPositionZero(t *testing.T) {
	ts := Derive(nil, false, false, "", "", ModelDefault)
	require.Equal(t, []string{ModelDefault}, ts.Tags())
}

func TestDerive_VisionBeatsDefaultModel(t *testing.T) {
	ts := Derive(nil, false, true, "", "", ModelDefault)
	tagList := ts.Tags()
	require.Equal(t, ModelVision, tagList[0])
	require.Contains(t, tagList, "Vision")
}

func TestDerive_ThinkingBeatsVision(t *testing.T) {
	calls := []model.ToolCall{{Name: "deep_thinking_analysis"}}
	ts := Derive(calls, false, true, "", "", ModelDefault)
	require.Equal(t, ModelThinking, ts.Tags()[0])
}

func TestDerive_StructuredMCPTagFromToolCall(t *testing.T) {
	calls := []model.ToolCall{{Name: "mcp_gmail_send"}}
	ts := Derive(calls, false, false, "", "", ModelDefault)
	require.Contains(t, ts.Tags(), "McpGmail")
}

func TestDerive_FileSearchNeverSurfaced(t *testing.T) {
	calls := []model.ToolCall{{Name: "file_search"}}
	ts := Derive(calls, false, false, "", "", ModelDefault)
	require.NotContains(t, ts.Tags(), "FileSearch")
}

func TestDerive_KeywordFallbackWithoutStructuredSignal(t *testing.T) {
	ts := Derive(nil, false, false, "", "found this on google drive", ModelDefault)
	require.Contains(t, ts.Tags(), "McpGoogleDrive")
}

func TestDerive_Dedupe(t *testing.T) {
	calls := []model.ToolCall{{Name: "mcp_gmail_1"}, {Name: "mcp_gmail_2"}}
	ts := Derive(calls, false, false, "", "", ModelDefault)
	count := 0
	for _, tag := range ts.Tags() {
		if tag == "McpGmail" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestInitialTags_ThinkingKeyword(t *testing.T) {
	ts := InitialTags("+think about this", false, false, ModelDefault)
	require.Equal(t, []string{ModelThinking, "Thinking"}, ts.Tags())
}

func TestFormat(t *testing.T) {
	out := Format([]string{"gpt-4.1-mini", "Vision", "WebSearch"})
	require.Equal(t, "`⛭ gpt-4.1-mini` `Vision` `WebSearch`", out)
}
