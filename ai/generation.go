package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/shenlehan/fashion-recommendation/store"
)

var errEmptyCompletion = errors.New("empty completion response")

// OutfitProposal is one drafted outfit: the chosen item IDs plus the
// provider's free-text description. The core treats the description as
// opaque.
type OutfitProposal struct {
	Description string  `json:"description"`
	ItemIDs     []int64 `json:"item_ids"`
}

// ProposalRequest carries everything the generation provider needs to
// draft an outfit from scratch.
type ProposalRequest struct {
	Context     string
	Preferences store.Preferences
	Candidates  []*store.WardrobeItem
}

// AdjustmentRequest carries a follow-up adjustment: the user's free-text
// request, the current outfit, recent history, and the candidate pool.
type AdjustmentRequest struct {
	RequestText   string
	Context       string
	History       []store.Turn
	CurrentOutfit []int64
	Candidates    []*store.WardrobeItem
}

// GenerationService drafts and adjusts outfits. Output always passes
// through the adjustment merge policy before reaching the caller.
type GenerationService interface {
	ProposeOutfit(ctx context.Context, req *ProposalRequest) (*OutfitProposal, error)
	AdjustOutfit(ctx context.Context, req *AdjustmentRequest) (*OutfitProposal, error)
}

// GenerationConfig configures the OpenAI-compatible generation provider.
type GenerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type generationService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(cfg *GenerationConfig) GenerationService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &generationService{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}
}

const proposeSystemPrompt = `You are a personal stylist. Pick one outfit from the candidate
wardrobe items for the given situation. Use only the listed item ids.
Respond with a single JSON object: {"item_ids": [..], "description": "why this works"}`

const adjustSystemPrompt = `You are a personal stylist refining an outfit. Apply the user's
adjustment request to the current outfit, changing only what the user asked to change and
keeping every other category as it is. Use only the listed item ids.
Respond with a single JSON object: {"item_ids": [..], "description": "what changed and why"}`

func (s *generationService) ProposeOutfit(ctx context.Context, req *ProposalRequest) (*OutfitProposal, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Situation: %s\n", req.Context)
	writePreferences(&sb, req.Preferences)
	writeCandidates(&sb, req.Candidates)

	return s.complete(ctx, proposeSystemPrompt, sb.String())
}

func (s *generationService) AdjustOutfit(ctx context.Context, req *AdjustmentRequest) (*OutfitProposal, error) {
	var sb strings.Builder
	if req.Context != "" {
		fmt.Fprintf(&sb, "Situation: %s\n", req.Context)
	}
	fmt.Fprintf(&sb, "Current outfit item ids: %v\n", req.CurrentOutfit)
	if len(req.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&sb, "- %s: %s\n", turn.Role, turn.Content)
		}
	}
	writeCandidates(&sb, req.Candidates)
	fmt.Fprintf(&sb, "Adjustment request: %s\n", req.RequestText)

	return s.complete(ctx, adjustSystemPrompt, sb.String())
}

func (s *generationService) complete(ctx context.Context, system, user string) (*OutfitProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyCompletion
	}

	var proposal OutfitProposal
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &proposal); err != nil {
		return nil, errors.Wrap(err, "failed to parse outfit proposal")
	}
	return &proposal, nil
}

func writePreferences(sb *strings.Builder, prefs store.Preferences) {
	if prefs.Occasion != "" {
		fmt.Fprintf(sb, "Occasion: %s\n", prefs.Occasion)
	}
	if prefs.Style != "" {
		fmt.Fprintf(sb, "Style: %s\n", prefs.Style)
	}
	if prefs.Color != "" {
		fmt.Fprintf(sb, "Preferred color: %s\n", prefs.Color)
	}
}

func writeCandidates(sb *strings.Builder, candidates []*store.WardrobeItem) {
	sb.WriteString("Candidate items:\n")
	for _, item := range candidates {
		fmt.Fprintf(sb, "- id=%d category=%s name=%q color=%s material=%s\n",
			item.ID, item.Category, item.Name, item.Color, item.Material)
	}
}
