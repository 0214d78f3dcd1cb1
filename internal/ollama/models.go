package ollama

// ModelInfo describes a model this server is commonly used with. The list
// is informational only; any model name the daemon accepts may be passed to
// the client operations.
type ModelInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Description  string   `json:"description"`
}

var knownModels = []ModelInfo{
	{
		Name:         "llama3.2",
		Capabilities: []string{"generate", "chat", "summarise"},
		Description:  "General purpose model, default for text generation and chat",
	},
	{
		Name:         "deepseek-coder",
		Capabilities: []string{"generate", "code"},
		Description:  "Code-tuned model, default for code generation",
	},
	{
		Name:         "nomic-embed-text",
		Capabilities: []string{"embed"},
		Description:  "Text embedding model, default for embed_text",
	},
}

// KnownModels returns the informational model catalog.
func KnownModels() []ModelInfo {
	out := make([]ModelInfo, len(knownModels))
	copy(out, knownModels)
	return out
}
