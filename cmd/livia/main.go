// Command livia boots the chat-ops assistant engine: loads configuration,
// wires every internal component together, and drives them from stdin
// lines standing in for inbound chat-platform events (the real
// chat-platform socket adapter is out of scope, spec.md §1 — this uses the
// in-process reference adapter, internal/chatplatform.InProcess).
//
// Grounded on the teacher's main.go: the outer config-reload retry loop,
// signal handling, and "wait for shutdown or reload" select shape are kept
// verbatim in structure; the inner wiring is rebuilt for this engine's
// pipeline split (Event Router → Tool Router → MCP Pipeline / Agent
// Pipeline → Streaming Presenter → Orchestrator).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/livia-chatops/livia/internal/agentpipe"
	"github.com/livia-chatops/livia/internal/chatplatform"
	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/governor"
	"github.com/livia-chatops/livia/internal/idgen"
	"github.com/livia-chatops/livia/internal/ingest"
	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/llmprovider/gemini"
	"github.com/livia-chatops/livia/internal/llmprovider/ollama"
	"github.com/livia-chatops/livia/internal/llmprovider/openairesp"
	"github.com/livia-chatops/livia/internal/mcp"
	"github.com/livia-chatops/livia/internal/media"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/livia-chatops/livia/internal/monitor"
	"github.com/livia-chatops/livia/internal/orchestrator"
	"github.com/livia-chatops/livia/internal/router"
	"github.com/livia-chatops/livia/internal/session"
	"github.com/livia-chatops/livia/internal/threadctx"
	"github.com/livia-chatops/livia/internal/toolexec"
)

const (
	configPath = "config.json"
	systemPath = "system.json"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fallback console setup before the first successful config load.
	sysCfg := config.LoadSystemConfig(systemPath)
	monitor.SetupEnvironment(sysCfg.LogLevel)

	reloadCh := config.WatchConfig(ctx, configPath, systemPath)

	for {
		err := runEngine(ctx, reloadCh)
		if err != nil {
			slog.Error("engine crashed or failed to start", "error", err)
			slog.Info("waiting 5 seconds before retrying...")
			select {
			case <-ctx.Done():
				return
			case <-reloadCh:
				slog.Info("configuration change detected while waiting, retrying immediately")
			case <-time.After(5 * time.Second):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			slog.Info("==== configuration reloaded ====")
		}
	}
}

// runEngine wires and runs one lifecycle of the engine, returning nil on a
// clean shutdown or config-reload request, and an error on any wiring
// failure (triggering the outer retry loop).
func runEngine(ctx context.Context, reloadCh <-chan struct{}) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sysCfg := config.LoadSystemConfig(systemPath)

	m := monitor.SetupEnvironment(sysCfg.LogLevel)
	if err := m.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer m.Stop()

	gov := governor.New(sysCfg.GovernorPools)

	llmClient, visionClient, reasonerClient, openaiRaw, err := buildProviders(ctx, cfg, sysCfg, gov)
	if err != nil {
		return fmt.Errorf("build LLM providers: %w", err)
	}
	if openaiRaw == nil {
		return fmt.Errorf("config: an \"openai\" provider group is required — it is the only surface " +
			"that supports hosted MCP tools, file search, and image generation")
	}

	botUserID := "livia-bot"
	platform := chatplatform.NewInProcess(botUserID)

	sessions := session.NewStore()
	dedupe := session.NewDedupeCache(sysCfg.DedupeCacheSize)
	allowList := session.NewAllowList(cfg.AllowList)
	rootLookup := chatplatform.NewRootLookup(platform)
	dmResolver := chatplatform.NewDMResolver(platform)
	rtr := router.New(botUserID, dedupe, allowList, rootLookup)

	replyFetch := chatplatform.NewReplyFetcher(platform)
	assembler, err := threadctx.NewAssembler(sysCfg)
	if err != nil {
		return fmt.Errorf("build context assembler: %w", err)
	}

	mcpBearer := os.Getenv("LIVIA_MCP_BEARER_TOKEN")
	mcpTable := mcp.NewTable(cfg.MCPServices, mcpBearer)

	var fileStore ingest.FileStore
	var mcpRunner mcp.Runner
	var hostedRunner toolexec.HostedRunner
	if openaiRaw != nil {
		fileStore = openairesp.NewFileStore(openaiRaw.client.Raw())
		mcpRunner = openaiRaw.client
		hostedRunner = openairesp.HostedToolAdapter{Client: openaiRaw.client}
	}
	ingestor := ingest.NewIngestor(fileStore, time.Duration(sysCfg.DocumentIndexTTLHours)*time.Hour)

	tools := toolexec.Tools(mcpTable.All())

	// agentBase is the per-request template the Orchestrator clones,
	// attaching a fresh tool executor per request (§4.E); Executor stays
	// nil here.
	agentBase := &agentpipe.Pipeline{
		DefaultProvider:  llmClient,
		VisionProvider:   visionClient,
		ThinkingProvider: reasonerClient,
		Tools:            tools,
		SysCfg:           sysCfg,
	}

	// fallbackPipeline is the static pipeline the MCP Pipeline falls back
	// to once its own hosted-MCP attempts are exhausted; it carries no
	// per-thread state (no channel/thread identity reaches that interface).
	fallbackExecutor := &toolexec.Executor{
		Hosted:    hostedRunner,
		MCPTable:  mcpTable,
		MCPRunner: mcpRunner,
		MCPBearer: mcpBearer,
	}
	fallbackPipeline := &agentpipe.Pipeline{
		DefaultProvider:  llmClient,
		VisionProvider:   visionClient,
		ThinkingProvider: reasonerClient,
		Executor:         fallbackExecutor,
		Tools:            tools,
		SysCfg:           sysCfg,
	}

	mcpPipeline := mcp.NewPipeline(mcpTable, mcpRunner, gov, mcpBearer, orchestrator.NewAgentFallback(fallbackPipeline))

	orch := orchestrator.New(
		platform, sessions, assembler, replyFetch, ingestor,
		mcpTable, mcpPipeline, mcpRunner, mcpBearer, hostedRunner,
		agentBase, sysCfg,
	)

	go sweepExpiredDocuments(ctx, sessions, time.Duration(sysCfg.DocumentIndexTTLHours)*time.Hour)

	inputDone := make(chan struct{})
	go runCLILoop(ctx, rtr, dmResolver, orch, platform, m, inputDone)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		return nil
	case <-reloadCh:
		slog.Info("configuration change detected, restarting engine")
		return nil
	case <-inputDone:
		slog.Info("input stream closed, shutting down")
		return nil
	}
}

// sweepExpiredDocuments periodically clears vector indices whose TTL has
// elapsed, matching the Document Ingestor's ephemeral-index contract.
func sweepExpiredDocuments(ctx context.Context, sessions *session.Store, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.SweepExpiredIndices(ttl)
		}
	}
}

// runCLILoop reads lines from stdin as inbound chat-platform events, one
// per message, into channel "cli" from user "cli-user", driving them
// through the Event Router and the Orchestrator exactly as a real
// chat-platform adapter's event callback would. A line prefixed "/dm "
// is delivered on a direct-message channel instead (chatplatform's "D"
// prefix convention), exercising §4.F step 3/step 5's DM-specific rules.
func runCLILoop(ctx context.Context, rtr *router.Router, dmResolver *chatplatform.DMResolver, orch *orchestrator.Orchestrator, platform *chatplatform.InProcess, m monitor.Monitor, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(os.Stdin)
	const publicChannelID = "cli"
	const dmChannelID = "D-cli-dm"
	const userID = "cli-user"

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		channelID := publicChannelID
		if rest, ok := strings.CutPrefix(line, "/dm "); ok {
			channelID = dmChannelID
			line = strings.TrimSpace(rest)
		}

		ev := router.RawEvent{
			ChannelID: channelID,
			UserID:    userID,
			Username:  userID,
			EventTS:   idgen.New(),
			Text:      line,
			IsDM:      dmResolver.IsDM(ctx, channelID),
		}

		dec := rtr.Route(ctx, ev)
		if !dec.Respond {
			continue
		}

		images := media.ExtractImageURLs(dec.CleanText)
		var imageRefs []model.ImageRef
		for _, url := range images {
			imageRefs = append(imageRefs, model.ImageRef{URL: url})
		}

		req := router.BuildRequest(ev, dec, imageRefs, nil, nil, uuid.NewString())
		m.OnMessage(monitor.Message{Timestamp: time.Now(), MessageType: "USER", ChannelID: channelID, Username: userID, Content: req.Text})

		before := platform.AllMessages(channelID)
		orch.Handle(ctx, req)
		after := platform.AllMessages(channelID)

		for ts, text := range after {
			if before[ts] != text {
				m.OnMessage(monitor.Message{Timestamp: time.Now(), MessageType: "ASSISTANT", ChannelID: channelID, Content: text})
			}
		}
	}
}

// buildProviders parses cfg.Providers (spec.md's provider-group shape,
// grounded on the teacher's pkg/llm/loader.go NewFromConfig) into the
// default chat client (openai primary, with ollama/gemini fallback
// members wrapped into one llmprovider.FallbackClient), the vision-routed
// client for image-bearing requests, and the reasoner client that backs
// the thinking sub-agent (spec.md §4.I's deep_thinking_analysis tool,
// tagged `reasoner` per §4.E's model-identifier rule). A provider group
// with `"reasoner": true` supplies the latter; absent one, the thinking
// tool degrades to the default model rather than going unanswered. Every
// atomic client is wrapped in a GovernedClient so its stream-initiation
// passes through the Rate Governor's "llm" pool.
func buildProviders(ctx context.Context, cfg *config.Config, sysCfg *config.SystemConfig, gov *governor.Governor) (llmprovider.Client, llmprovider.Client, llmprovider.Client, *openaiRawClient, error) {
	var groups []providerGroup
	if len(cfg.Providers) > 0 {
		if err := jsoniter.Unmarshal(cfg.Providers, &groups); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("parse providers config: %w", err)
		}
	}

	var atomic []llmprovider.Client
	var vision llmprovider.Client
	var reasoner llmprovider.Client
	var openaiRaw *openaiRawClient

	for _, g := range groups {
		switch g.Type {
		case "openai":
			for _, apiKey := range apiKeysOrEnv(g.APIKeys, "OPENAI_API_KEY") {
				for _, modelName := range g.Models {
					c := openairesp.NewClient(apiKey, modelName, g.BaseURL)
					governed := &llmprovider.GovernedClient{Client: c, Gov: gov, Pool: "llm"}
					atomic = append(atomic, governed)
					if openaiRaw == nil {
						openaiRaw = &openaiRawClient{client: c}
					}
					if g.Reasoner && reasoner == nil {
						reasoner = governed
					}
				}
			}
		case "gemini":
			for _, apiKey := range apiKeysOrEnv(g.APIKeys, "GEMINI_API_KEY") {
				for _, modelName := range g.Models {
					c, err := gemini.NewClient(ctx, apiKey, modelName, g.UseThoughtSignature)
					if err != nil {
						slog.Warn("skipping gemini model", "model", modelName, "error", err)
						continue
					}
					governed := &llmprovider.GovernedClient{Client: c, Gov: gov, Pool: "llm"}
					atomic = append(atomic, governed)
					if vision == nil {
						vision = governed
					}
					if g.Reasoner && reasoner == nil {
						reasoner = governed
					}
				}
			}
		case "ollama":
			for _, modelName := range g.Models {
				c, err := ollama.NewClient(modelName, g.BaseURL)
				if err != nil {
					slog.Warn("skipping ollama model", "model", modelName, "error", err)
					continue
				}
				governed := &llmprovider.GovernedClient{Client: c, Gov: gov, Pool: "llm"}
				atomic = append(atomic, governed)
				if g.Reasoner && reasoner == nil {
					reasoner = governed
				}
			}
		default:
			slog.Warn("unknown provider type in config, skipping", "type", g.Type)
		}
	}

	if len(atomic) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("no LLM clients could be initialized from config")
	}

	var defaultClient llmprovider.Client
	if len(atomic) == 1 {
		defaultClient = atomic[0]
	} else {
		defaultClient = llmprovider.NewFallbackClient(atomic, sysCfg.MaxRetries)
	}
	if vision == nil {
		vision = defaultClient
	}
	if reasoner == nil {
		reasoner = defaultClient
	}

	return defaultClient, vision, reasoner, openaiRaw, nil
}

// providerGroup is the on-disk shape of one provider-group entry in
// config.json's "providers" array, grounded on the teacher's
// ProviderGroupConfig.
type providerGroup struct {
	Type                string   `json:"type"`
	APIKeys             []string `json:"api_keys,omitempty"`
	Models              []string `json:"models"`
	BaseURL             string   `json:"base_url,omitempty"`
	UseThoughtSignature bool     `json:"use_thought_signature,omitempty"`
	Reasoner            bool     `json:"reasoner,omitempty"`
}

func apiKeysOrEnv(keys []string, envVar string) []string {
	if len(keys) > 0 {
		return keys
	}
	if v := os.Getenv(envVar); v != "" {
		return []string{v}
	}
	return nil
}

// openaiRawClient carries the one openai-go/v3 client this process
// constructed, so the Document Ingestor's FileStore and the MCP/hosted-tool
// runners can share the same credentials instead of each opening their own.
type openaiRawClient struct {
	client *openairesp.Client
}
