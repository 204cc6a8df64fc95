package semantic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Hit is one chunk returned by vector search.
type Hit struct {
	ID         string
	FilePath   string
	StartLine  int
	EndLine    int
	Text       string
	Similarity float32
}

// Location formats the hit as path:start-end.
func (h Hit) Location() string {
	return fmt.Sprintf("%s:%d-%d", h.FilePath, h.StartLine, h.EndLine)
}

// Synthesizer turns retrieved chunks into a single textual answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, hits []Hit) (string, error)
}

// ContextSynthesizer returns the retrieved chunks themselves, best match
// first, each under a location header. It needs no model.
type ContextSynthesizer struct{}

func (ContextSynthesizer) Synthesize(_ context.Context, _ string, hits []Hit) (string, error) {
	return formatHits(hits), nil
}

func formatHits(hits []Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "# %s (similarity %.2f)\n", h.Location(), h.Similarity)
		b.WriteString(strings.TrimRight(h.Text, "\n"))
	}
	return b.String()
}

const synthesizerSystemPrompt = `You answer questions about a codebase.
Use only the source excerpts provided. Reply with code where the question asks for code.
If the excerpts do not contain the answer, say so.`

// OpenAISynthesizer asks a chat completion model to answer from the chunks.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISynthesizer creates a chat-backed synthesizer. An empty baseURL
// uses the OpenAI API; an empty model uses GPT-4o mini.
func NewOpenAISynthesizer(apiKey, baseURL, model string) *OpenAISynthesizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, question string, hits []Hit) (string, error) {
	prompt := fmt.Sprintf("Source excerpts:\n\n%s\n\nQuestion: %s", formatHits(hits), question)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: synthesizerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("chat completion returned an empty answer")
	}
	return answer, nil
}

// NewSynthesizer resolves a synthesizer by name: "context" (default) or
// "openai".
func NewSynthesizer(name, apiKey, baseURL, model string) (Synthesizer, error) {
	switch name {
	case "", "context":
		return ContextSynthesizer{}, nil
	case "openai":
		if apiKey == "" {
			return nil, errors.New("openai synthesizer requires an API key")
		}
		return NewOpenAISynthesizer(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown synthesizer: %s", name)
	}
}
