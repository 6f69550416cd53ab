package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/shenlehan/fashion-recommendation/store"
)

// GarmentAttributes is the structured labeling of one garment photo.
type GarmentAttributes struct {
	Name     string         `json:"name"`
	Color    string         `json:"color"`
	Material string         `json:"material"`
	Category store.Category `json:"category"`
	Seasons  []store.Season `json:"seasons"`
}

// VisionService labels garment photos. It is an external collaborator;
// the core only consumes its output.
type VisionService interface {
	// LabelGarment extracts structured attributes from a garment image.
	LabelGarment(ctx context.Context, imageRef string) (*GarmentAttributes, error)

	// DescribeGarment returns a short free-text caption of the garment,
	// used to derive the image-semantic embedding half.
	DescribeGarment(ctx context.Context, imageRef string) (string, error)
}

// VisionConfig configures the OpenAI-compatible vision provider.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type visionService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

const labelPrompt = `You label clothing photos for a wardrobe app.
Respond with a single JSON object:
{"name": "...", "color": "...", "material": "...",
 "category": "one of underwear|inner_top|mid_top|outer_top|bottom|full_body|shoes|socks|accessories",
 "seasons": ["subset of spring,summer,fall,winter"]}`

const describePrompt = `Describe the clothing item in this photo in one short English sentence covering type, color, material and style. Plain text only.`

// NewVisionService creates a new VisionService.
func NewVisionService(cfg *VisionConfig) VisionService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &visionService{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (s *visionService) LabelGarment(ctx context.Context, imageRef string) (*GarmentAttributes, error) {
	content, err := s.complete(ctx, labelPrompt, imageRef)
	if err != nil {
		return nil, err
	}
	var attrs GarmentAttributes
	if err := json.Unmarshal([]byte(extractJSON(content)), &attrs); err != nil {
		return nil, err
	}
	if !attrs.Category.IsValid() {
		attrs.Category = store.CategoryAccessories
	}
	return &attrs, nil
}

func (s *visionService) DescribeGarment(ctx context.Context, imageRef string) (string, error) {
	content, err := s.complete(ctx, describePrompt, imageRef)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (s *visionService) complete(ctx context.Context, prompt, imageRef string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageRef},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}
