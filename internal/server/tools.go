package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"ollama-mcp/internal/ollama"
)

// Canonical tool names, in catalog order.
const (
	toolGenerateText   = "generate_text"
	toolChat           = "chat"
	toolEmbedText      = "embed_text"
	toolCodeGeneration = "code_generation"
	toolSummarise      = "summarise"
	toolListModels     = "list_models"
	toolPullModel      = "pull_model"
)

// catalogOrder is the order tools/list reports the catalog in.
var catalogOrder = []string{
	toolGenerateText, toolChat, toolEmbedText, toolCodeGeneration,
	toolSummarise, toolListModels, toolPullModel,
}

// declarationOrder restores catalog order on tools/list responses; the MCP
// library sorts tool names alphabetically before applying filters.
func declarationOrder(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	rank := make(map[string]int, len(catalogOrder))
	for i, name := range catalogOrder {
		rank[name] = i
	}
	sort.SliceStable(tools, func(i, j int) bool {
		ri, iKnown := rank[tools[i].Name]
		rj, jKnown := rank[tools[j].Name]
		if iKnown != jKnown {
			return iKnown
		}
		return ri < rj
	})
	return tools
}

const (
	defaultTextModel  = "llama3.2"
	defaultCodeModel  = "deepseek-coder"
	defaultEmbedModel = "nomic-embed-text"

	defaultTemperature   = 0.7
	codeTemperature      = 0.2
	summariseTemperature = 0.3
	defaultMaxTokens     = 2048

	// Appended to every generate_text prompt.
	generateSuffix = "\n\nPlease provide a clear and concise response."

	// How much of the input embed_text echoes back.
	embedEchoLimit   = 100
	embedSampleCount = 5
)

var summariseInstructions = map[string]string{
	"brief":    "in 1-2 sentences",
	"medium":   "in 2-4 sentences",
	"detailed": "in detail, covering every main point",
}

// ValidationError reports arguments rejected at the dispatch boundary,
// before the handler body runs.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// decodeArgs unmarshals the invocation arguments into a typed struct.
// Unknown fields are rejected; defaults are whatever the struct already
// holds.
func decodeArgs(tool string, req mcp.CallToolRequest, v any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return &ValidationError{Tool: tool, Message: err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Tool: tool, Message: err.Error()}
	}
	return nil
}

type toolEntry struct {
	tool    mcp.Tool
	handler mcpserver.ToolHandlerFunc
}

// catalog declares the seven tools. Declaration order is the order
// tools/list reports them in.
func (s *Server) catalog() []toolEntry {
	return []toolEntry{
		{
			tool: mcp.NewTool(toolGenerateText,
				mcp.WithDescription("Generate text from a prompt using an Ollama model"),
				mcp.WithString("prompt", mcp.Required(),
					mcp.Description("The prompt to generate text from")),
				mcp.WithString("model", mcp.DefaultString(defaultTextModel),
					mcp.Description("Model to use")),
				mcp.WithNumber("temperature", mcp.DefaultNumber(defaultTemperature),
					mcp.Description("Sampling temperature")),
				mcp.WithNumber("max_tokens", mcp.DefaultNumber(defaultMaxTokens),
					mcp.Description("Maximum number of tokens to generate")),
			),
			handler: s.handleGenerateText,
		},
		{
			tool: mcp.NewTool(toolChat,
				mcp.WithDescription("Have a multi-turn conversation with an Ollama model"),
				mcp.WithArray("messages", mcp.Required(),
					mcp.Description("Conversation turns in order, each with a role and content"),
					mcp.Items(map[string]any{
						"type": "object",
						"properties": map[string]any{
							"role": map[string]any{
								"type": "string",
								"enum": []string{"system", "user", "assistant"},
							},
							"content": map[string]any{"type": "string"},
						},
						"required": []string{"role", "content"},
					})),
				mcp.WithString("model", mcp.DefaultString(defaultTextModel),
					mcp.Description("Model to use")),
				mcp.WithNumber("temperature", mcp.DefaultNumber(defaultTemperature),
					mcp.Description("Sampling temperature")),
			),
			handler: s.handleChat,
		},
		{
			tool: mcp.NewTool(toolEmbedText,
				mcp.WithDescription("Compute an embedding vector for a piece of text"),
				mcp.WithString("text", mcp.Required(),
					mcp.Description("Text to embed")),
				mcp.WithString("model", mcp.DefaultString(defaultEmbedModel),
					mcp.Description("Embedding model to use")),
			),
			handler: s.handleEmbedText,
		},
		{
			tool: mcp.NewTool(toolCodeGeneration,
				mcp.WithDescription("Generate source code for a described task"),
				mcp.WithString("task", mcp.Required(),
					mcp.Description("What the code should do")),
				mcp.WithString("language", mcp.DefaultString("python"),
					mcp.Description("Target programming language")),
				mcp.WithString("model", mcp.DefaultString(defaultCodeModel),
					mcp.Description("Model to use")),
				mcp.WithNumber("temperature", mcp.DefaultNumber(codeTemperature),
					mcp.Description("Sampling temperature")),
			),
			handler: s.handleCodeGeneration,
		},
		{
			tool: mcp.NewTool(toolSummarise,
				mcp.WithDescription("Summarise a piece of text"),
				mcp.WithString("text", mcp.Required(),
					mcp.Description("Text to summarise")),
				mcp.WithString("length", mcp.DefaultString("medium"),
					mcp.Enum("brief", "medium", "detailed"),
					mcp.Description("How long the summary should be")),
				mcp.WithString("model", mcp.DefaultString(defaultTextModel),
					mcp.Description("Model to use")),
			),
			handler: s.handleSummarise,
		},
		{
			tool: mcp.NewTool(toolListModels,
				mcp.WithDescription("List the models available on the Ollama daemon"),
				mcp.WithBoolean("refresh", mcp.DefaultBool(false),
					mcp.Description("Bypass the cached list and query the daemon")),
			),
			handler: s.handleListModels,
		},
		{
			tool: mcp.NewTool(toolPullModel,
				mcp.WithDescription("Download a model into the Ollama daemon"),
				mcp.WithString("model", mcp.Required(),
					mcp.Description("Name of the model to pull, e.g. llama3.2:1b")),
			),
			handler: s.handlePullModel,
		},
	}
}

// guard is the dispatch-level safety net: any error or panic escaping a
// handler becomes an error-flagged result, never a protocol fault.
func (s *Server) guard(name string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("tool", name).Interface("panic", r).Msg("tool handler panicked")
				res = mcp.NewToolResultError(fmt.Sprintf("Error executing %s: %v", name, r))
				err = nil
			}
		}()
		res, herr := h(ctx, req)
		if herr != nil {
			s.log.Error().Str("tool", name).Err(herr).Msg("tool call failed")
			return mcp.NewToolResultError(fmt.Sprintf("Error executing %s: %v", name, herr)), nil
		}
		return res, nil
	}
}

type generateTextArgs struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func (s *Server) handleGenerateText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := generateTextArgs{Model: defaultTextModel, Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}
	if err := decodeArgs(toolGenerateText, req, &args); err != nil {
		return nil, err
	}
	if args.Prompt == "" {
		return nil, &ValidationError{Tool: toolGenerateText, Message: "prompt is required"}
	}

	opts := ollama.DefaultOptions()
	opts.Temperature = args.Temperature
	opts.NumPredict = args.MaxTokens

	text, err := s.backend.GenerateText(ctx, args.Model, args.Prompt+generateSuffix, opts)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Generated by %s:\n\n%s", args.Model, text)), nil
}

type chatArgs struct {
	Messages    []ollama.Message `json:"messages"`
	Model       string           `json:"model"`
	Temperature float64          `json:"temperature"`
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := chatArgs{Model: defaultTextModel, Temperature: defaultTemperature}
	if err := decodeArgs(toolChat, req, &args); err != nil {
		return nil, err
	}
	if len(args.Messages) == 0 {
		return nil, &ValidationError{Tool: toolChat, Message: "messages is required"}
	}
	for i, m := range args.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return nil, &ValidationError{Tool: toolChat, Message: fmt.Sprintf("message %d has unknown role %q", i, m.Role)}
		}
	}

	opts := ollama.DefaultOptions()
	opts.Temperature = args.Temperature

	reply, err := s.backend.ChatCompletion(ctx, args.Model, args.Messages, opts)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Chat response from %s:\n\n%s", args.Model, reply)), nil
}

type embedTextArgs struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

func (s *Server) handleEmbedText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := embedTextArgs{Model: defaultEmbedModel}
	if err := decodeArgs(toolEmbedText, req, &args); err != nil {
		return nil, err
	}
	if args.Text == "" {
		return nil, &ValidationError{Tool: toolEmbedText, Message: "text is required"}
	}

	vec, err := s.backend.GenerateEmbedding(ctx, args.Model, args.Text)
	if err != nil {
		return nil, err
	}

	samples := make([]string, 0, embedSampleCount)
	for i := 0; i < len(vec) && i < embedSampleCount; i++ {
		samples = append(samples, fmt.Sprintf("%.4f", vec[i]))
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Embedding for: %q\nModel: %s\nDimensions: %d\nSample values: [%s]",
		truncate(args.Text, embedEchoLimit), args.Model, len(vec), strings.Join(samples, ", "))), nil
}

type codeGenerationArgs struct {
	Task        string  `json:"task"`
	Language    string  `json:"language"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

func (s *Server) handleCodeGeneration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := codeGenerationArgs{Language: "python", Model: defaultCodeModel, Temperature: codeTemperature}
	if err := decodeArgs(toolCodeGeneration, req, &args); err != nil {
		return nil, err
	}
	if args.Task == "" {
		return nil, &ValidationError{Tool: toolCodeGeneration, Message: "task is required"}
	}

	prompt := fmt.Sprintf(
		"Generate %s code for the following task:\n\n%s\n\nProvide clean, well-commented code that follows best practices.",
		args.Language, args.Task)

	opts := ollama.DefaultOptions()
	opts.Temperature = args.Temperature

	code, err := s.backend.GenerateText(ctx, args.Model, prompt, opts)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Generated %s code by %s:\n\n%s", args.Language, args.Model, code)), nil
}

type summariseArgs struct {
	Text   string `json:"text"`
	Length string `json:"length"`
	Model  string `json:"model"`
}

func (s *Server) handleSummarise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := summariseArgs{Length: "medium", Model: defaultTextModel}
	if err := decodeArgs(toolSummarise, req, &args); err != nil {
		return nil, err
	}
	if args.Text == "" {
		return nil, &ValidationError{Tool: toolSummarise, Message: "text is required"}
	}
	instruction, ok := summariseInstructions[args.Length]
	if !ok {
		return nil, &ValidationError{Tool: toolSummarise, Message: fmt.Sprintf("length must be brief, medium or detailed, got %q", args.Length)}
	}

	prompt := fmt.Sprintf("Summarise the following text %s:\n\n%s", instruction, args.Text)

	// Summaries always run cool, whatever the model's own default is.
	opts := ollama.DefaultOptions()
	opts.Temperature = summariseTemperature

	summary, err := s.backend.GenerateText(ctx, args.Model, prompt, opts)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Summary (%s) by %s:\n\n%s", args.Length, args.Model, summary)), nil
}

type listModelsArgs struct {
	Refresh bool `json:"refresh"`
}

func (s *Server) handleListModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listModelsArgs
	if err := decodeArgs(toolListModels, req, &args); err != nil {
		return nil, err
	}

	if !args.Refresh {
		if names, _, ok := s.cache.Get(); ok {
			return mcp.NewToolResultText(formatModelList(names)), nil
		}
	}

	names, err := s.backend.ListModels(ctx)
	if err != nil {
		// Informational tool: an unreachable daemon is not an error result.
		s.log.Warn().Err(err).Msg("could not list models")
		return mcp.NewToolResultText("No models found. Is the Ollama daemon running?"), nil
	}
	s.cache.Put(names)
	return mcp.NewToolResultText(formatModelList(names)), nil
}

type pullModelArgs struct {
	Model string `json:"model"`
}

func (s *Server) handlePullModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args pullModelArgs
	if err := decodeArgs(toolPullModel, req, &args); err != nil {
		return nil, err
	}
	if args.Model == "" {
		return nil, &ValidationError{Tool: toolPullModel, Message: "model is required"}
	}

	if err := s.backend.PullModel(ctx, args.Model); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to pull model %s: %v", args.Model, err)), nil
	}
	s.cache.Invalidate()
	return mcp.NewToolResultText(fmt.Sprintf("Successfully pulled model %s", args.Model)), nil
}

func formatModelList(names []string) string {
	if len(names) == 0 {
		return "No models found."
	}
	var b strings.Builder
	b.WriteString("Available models:\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
