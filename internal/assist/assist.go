// Package assist generates subject-line and body suggestions for campaign
// drafts with AWS Bedrock. All content stays inside AWS.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// modelInvoker is the slice of the Bedrock client the service uses.
type modelInvoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Service wraps Bedrock model invocation for the assist endpoints.
type Service struct {
	client  modelInvoker
	modelID string
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type modelRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature,omitempty"`
}

type modelResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// New builds the assist service against the configured region and model.
func New(region, modelID string) (*Service, error) {
	if region == "" {
		region = "us-east-1"
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	logger.Info("assist service initialized", "model", modelID, "region", region)
	return &Service{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

const subjectSystemPrompt = `You write email subject lines for newsletters.
Given a draft or topic, respond with exactly five subject line suggestions,
one per line, with no numbering, bullets, or commentary. Keep each under
65 characters. Avoid clickbait and spam-trigger words.`

// SuggestSubjects returns up to five subject-line suggestions for a topic
// or draft body.
func (s *Service) SuggestSubjects(ctx context.Context, topic string) ([]string, error) {
	raw, err := s.invoke(ctx, subjectSystemPrompt, topic, 400, 0.8)
	if err != nil {
		return nil, err
	}

	var subjects []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		subjects = append(subjects, line)
		if len(subjects) == 5 {
			break
		}
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("model returned no suggestions")
	}
	return subjects, nil
}

const bodySystemPrompt = `You help newsletter authors improve drafts.
Rewrite the provided draft for clarity and warmth, keeping the author's
voice and roughly the same length. Respond with the rewritten draft only,
as HTML paragraphs, with no preamble.`

// ImproveBody rewrites a draft body and returns the suggestion.
func (s *Service) ImproveBody(ctx context.Context, draft string) (string, error) {
	out, err := s.invoke(ctx, bodySystemPrompt, draft, 2000, 0.6)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Service) invoke(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(modelRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Temperature:      temperature,
		Messages: []message{
			{Role: "user", Content: []contentBlock{{Type: "text", Text: user}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding model request: %w", err)
	}

	output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoking model: %w", err)
	}

	var resp modelResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
