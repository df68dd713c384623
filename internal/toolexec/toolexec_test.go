package toolexec

import (
	"context"
	"testing"

	"github.com/livia-chatops/livia/internal/agentpipe"
	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeHosted struct {
	webSearchResult string
	fileSearchResult string
	lastFileSearchIndex string
	imageBase64     string
	revisedPrompt   string
}

func (f *fakeHosted) RunWebSearch(ctx context.Context, query string) (string, error) {
	return f.webSearchResult, nil
}

func (f *fakeHosted) RunFileSearch(ctx context.Context, query, vectorIndexID string) (string, error) {
	f.lastFileSearchIndex = vectorIndexID
	return f.fileSearchResult, nil
}

func (f *fakeHosted) RunImageGeneration(ctx context.Context, prompt string) (string, string, error) {
	return f.imageBase64, f.revisedPrompt, nil
}

type fakeImageSink struct {
	delivered bool
	base64Data, revisedPrompt string
}

func (s *fakeImageSink) DeliverImage(ctx context.Context, base64Data, revisedPrompt string) error {
	s.delivered = true
	s.base64Data = base64Data
	s.revisedPrompt = revisedPrompt
	return nil
}

type fakeThread struct{ indexID string }

func (t fakeThread) VectorIndexID() string { return t.indexID }

type fakeMCPRunner struct {
	lastText string
	result   mcp.Result
}

func (f *fakeMCPRunner) RunHostedMCP(ctx context.Context, systemPrompt, userText string, images []model.ImageRef, desc mcp.HostedDescriptor) (mcp.Result, error) {
	f.lastText = userText
	return f.result, nil
}

func (f *fakeMCPRunner) IsContextOverflow(err error) bool { return false }
func (f *fakeMCPRunner) IsTransientError(err error) bool  { return false }

func TestExecute_WebSearch(t *testing.T) {
	hosted := &fakeHosted{webSearchResult: "search results here"}
	e := &Executor{Hosted: hosted}

	out, err := e.Execute(context.Background(), model.ToolCall{Name: WebSearchToolName, Arguments: `{"query":"go generics"}`})
	require.NoError(t, err)
	require.Equal(t, "search results here", out)
}

func TestExecute_FileSearch_UsesThreadVectorIndex(t *testing.T) {
	hosted := &fakeHosted{fileSearchResult: "found it"}
	e := &Executor{Hosted: hosted, Thread: fakeThread{indexID: "vs-123"}}

	out, err := e.Execute(context.Background(), model.ToolCall{Name: FileSearchToolName, Arguments: `{"query":"quarterly revenue"}`})
	require.NoError(t, err)
	require.Equal(t, "found it", out)
	require.Equal(t, "vs-123", hosted.lastFileSearchIndex)
}

func TestExecute_FileSearch_NilThreadIsOptional(t *testing.T) {
	hosted := &fakeHosted{fileSearchResult: "ok"}
	e := &Executor{Hosted: hosted}

	out, err := e.Execute(context.Background(), model.ToolCall{Name: FileSearchToolName, Arguments: `{"query":"x"}`})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Empty(t, hosted.lastFileSearchIndex)
}

func TestExecute_ImageGeneration_DeliversToSink(t *testing.T) {
	hosted := &fakeHosted{imageBase64: "YmFzZTY0", revisedPrompt: "a red bicycle"}
	sink := &fakeImageSink{}
	e := &Executor{Hosted: hosted, Images: sink}

	out, err := e.Execute(context.Background(), model.ToolCall{Name: ImageGenerationToolName, Arguments: `{"prompt":"a bicycle"}`})
	require.NoError(t, err)
	require.Contains(t, out, "a red bicycle")
	require.True(t, sink.delivered)
	require.Equal(t, "YmFzZTY0", sink.base64Data)
}

func TestExecute_MCPTool_RoutesToRunner(t *testing.T) {
	table := mcp.NewTable([]config.MCPServiceConfig{
		{Key: "mail", ServerLabel: "mail-server", ServerURL: "https://mcp.example/mail", SystemPrompt: "you can read mail"},
	}, "bearer-token")
	runner := &fakeMCPRunner{result: mcp.Result{Text: "read 3 emails"}}
	e := &Executor{MCPTable: table, MCPRunner: runner, MCPBearer: "bearer-token"}

	out, err := e.Execute(context.Background(), model.ToolCall{Name: "mail", Arguments: `{"query":"unread from boss"}`})
	require.NoError(t, err)
	require.Equal(t, "read 3 emails", out)
	require.Equal(t, "unread from boss", runner.lastText)
}

func TestExecute_MCPTool_RejectsSanitizedArguments(t *testing.T) {
	table := mcp.NewTable([]config.MCPServiceConfig{
		{Key: "mail", ServerLabel: "mail-server", ServerURL: "https://mcp.example/mail", SystemPrompt: "you can read mail"},
	}, "bearer-token")
	runner := &fakeMCPRunner{result: mcp.Result{Text: "should not run"}}
	e := &Executor{MCPTable: table, MCPRunner: runner, MCPBearer: "bearer-token"}

	_, err := e.Execute(context.Background(), model.ToolCall{Name: "mail", Arguments: `{"query":"rm -rf / ; echo pwned"}`})
	require.Error(t, err)
	require.Empty(t, runner.lastText)
}

func TestExecute_UnknownTool(t *testing.T) {
	table := mcp.NewTable(nil, "")
	e := &Executor{MCPTable: table}

	_, err := e.Execute(context.Background(), model.ToolCall{Name: "does_not_exist", Arguments: `{}`})
	require.Error(t, err)
}

func TestTools_AdvertisesThinkingToolAlongsideHostedAndMCPTools(t *testing.T) {
	table := mcp.NewTable([]config.MCPServiceConfig{
		{Key: "mail", ServerLabel: "mail-server", ServerURL: "https://mcp.example/mail", SystemPrompt: "you can read mail"},
	}, "bearer-token")

	tools := Tools(table.All())

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Contains(t, names, agentpipe.ThinkingToolName)
	require.Contains(t, names, "mail")
	require.Contains(t, names, WebSearchToolName)
}
