package classify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifier-cli/pkg/anthropic"
	"github.com/sells-group/classifier-cli/pkg/ollama"
)

const arbiterSystemPrompt = "You are a precise industry-classification judge. " +
	"Always answer with a single JSON object and nothing else."

// AnthropicGenerator adapts the Anthropic messages client to the arbiter.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator binds a client and model.
func NewAnthropicGenerator(client anthropic.Client, model string) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: model}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := 0.0
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   512,
		System:      arbiterSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(g.model, "arbiter")

	text := resp.Text()
	if text == "" {
		return "", eris.New("classify: arbiter response had no text content")
	}
	return text, nil
}

// OllamaGenerator adapts the local Ollama client to the arbiter.
type OllamaGenerator struct {
	client ollama.Client
}

// NewOllamaGenerator wraps an Ollama client.
func NewOllamaGenerator(client ollama.Client) *OllamaGenerator {
	return &OllamaGenerator{client: client}
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Generate(ctx, prompt)
}
