package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"NewsWeaver/internal/config"
	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/ports"
)

// The conflict policy lives in the prompt: the model is instructed how to
// handle sources that disagree on facts; the orchestrator never resolves
// factual conflicts itself.
const systemPrompt = `You are a news synthesis service. You receive a bundle of source reports ` +
	`about one real-world event and produce a single synthesized article.

Rules:
- Use only facts present in the sources.
- When sources disagree on a figure (casualties, amounts, counts), prefer the most ` +
	`recently published source's figure, or qualify with "at least N" using the lowest figure.
- If a prior version number greater than 0 is given, write an updated revision, not a fresh take.

Respond with strict JSON, no markdown fences:
{"titleVariants": ["short title", "longer title"], "bodyVariants": ["full article body"], "extras": {}}`

// OpenAISynthesizer implements ports.Synthesizer on the OpenAI chat API.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
}

var _ ports.Synthesizer = (*OpenAISynthesizer)(nil)

// NewOpenAISynthesizer builds a client from configuration.
func NewOpenAISynthesizer(cfg config.SynthesisConfig) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

// Synthesize sends the bundle as a chat completion and parses the
// structured result. The caller owns the timeout via ctx.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.SynthesisResult, error) {
	if len(req.Sources) == 0 {
		return domain.SynthesisResult{}, fmt.Errorf("empty source bundle for cluster %s", req.ClusterID)
	}

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(buildPrompt(req)),
					},
				},
			},
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("openai request: %w", err)
	}
	if len(response.Choices) == 0 {
		return domain.SynthesisResult{}, fmt.Errorf("no choices in openai response")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result domain.SynthesisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("parse synthesis result: %w", err)
	}

	return result, nil
}

func buildPrompt(req domain.SynthesisRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prior version number: %d\n", req.PriorVersion)
	fmt.Fprintf(&sb, "Sources (%d, most important first):\n\n", len(req.Sources))

	for i, src := range req.Sources {
		fmt.Fprintf(&sb, "Source %d:\n", i+1)
		fmt.Fprintf(&sb, "Outlet: %s\n", src.SourceName)
		fmt.Fprintf(&sb, "Published: %s\n", src.PublishedAt.Format("2006-01-02 15:04 MST"))
		fmt.Fprintf(&sb, "Importance: %d\n", src.ImportanceScore)
		fmt.Fprintf(&sb, "Title: %s\n", src.Title)
		if src.BodyText != "" {
			fmt.Fprintf(&sb, "Body: %s\n", src.BodyText)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
