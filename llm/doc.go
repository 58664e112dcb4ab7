// Package llm is the text-model contract used for transcript enrichment:
// chat completion (summaries, topics) and text embeddings.
//
// Backends register in a provider.Registry:
//
//   - llm/openai: OpenAI API through github.com/sashabaranov/go-openai
//   - llm/ollama: a local Ollama server (/api/chat, /api/embed)
//
// Usage:
//
//	reg := llm.NewRegistry()
//	reg.RegisterFactory(openai.ProviderName, openai.Factory())
//	capab := provider.Resolve(reg, cfg.Provider, cfg.Options)
//
//	if p, ok := capab.Get(); ok {
//	    text, err := llm.Complete(ctx, p, llm.CompletionRequest{
//	        SystemPrompt: "Summarize.",
//	        Messages:     []llm.Message{llm.UserMessage(transcript)},
//	    })
//	}
package llm
