// Package ai provides the provider interfaces consumed by the retrieval
// and recommendation core: embedding, generation, and garment vision.
// All implementations speak the OpenAI-compatible protocol.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// EmbeddingService is the vector embedding provider interface.
//
// A nil, nil return (empty vector, no error) signals degraded mode: the
// provider is unavailable and callers must fall back rather than fail.
type EmbeddingService interface {
	// EmbedText generates the text-semantic vector for a description.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage generates the image-semantic vector for a garment image.
	EmbedImage(ctx context.Context, imageRef string) ([]float32, error)

	// TextDimensions returns the text half dimension.
	TextDimensions() int

	// ImageDimensions returns the image half dimension.
	ImageDimensions() int
}

// EmbeddingConfig configures the OpenAI-compatible embedding provider.
type EmbeddingConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	TextDim  int
	ImageDim int
	// RequestsPerSecond bounds calls to the provider; zero means 10.
	RequestsPerSecond float64
	Timeout           time.Duration
	// Vision supplies garment descriptions for the image half. Optional;
	// when nil the image half is reported as absent (zero-filled by the
	// index).
	Vision VisionService
	// Observer receives the outcome of every provider call. Optional.
	Observer func(kind string, success bool)
}

type embeddingService struct {
	client   *openai.Client
	vision   VisionService
	observer func(kind string, success bool)
	limiter  *rate.Limiter
	model    string
	textDim  int
	imageDim int
	timeout  time.Duration
	disabled bool
}

// NewEmbeddingService creates a new EmbeddingService. An empty API key
// yields a permanently degraded service that returns empty vectors; this
// keeps the rest of the system running on full-wardrobe fallback.
func NewEmbeddingService(cfg *EmbeddingConfig) EmbeddingService {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	svc := &embeddingService{
		vision:   cfg.Vision,
		observer: cfg.Observer,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		model:    cfg.Model,
		textDim:  cfg.TextDim,
		imageDim: cfg.ImageDim,
		timeout:  timeout,
		disabled: cfg.APIKey == "",
	}
	if !svc.disabled {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		svc.client = openai.NewClientWithConfig(clientConfig)
	}
	return svc
}

func (s *embeddingService) TextDimensions() int {
	return s.textDim
}

func (s *embeddingService) ImageDimensions() int {
	return s.imageDim
}

func (s *embeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.disabled || text == "" {
		return nil, nil
	}
	return s.embed(ctx, "text", text, s.textDim)
}

// EmbedImage derives the image half by captioning the garment through the
// vision provider and embedding the caption at the image dimension. When
// vision is not configured the image modality is reported absent.
func (s *embeddingService) EmbedImage(ctx context.Context, imageRef string) ([]float32, error) {
	if s.disabled || s.vision == nil || imageRef == "" {
		return nil, nil
	}
	caption, err := s.vision.DescribeGarment(ctx, imageRef)
	if err != nil {
		return nil, fmt.Errorf("describe garment failed: %w", err)
	}
	if caption == "" {
		return nil, nil
	}
	return s.embed(ctx, "image", caption, s.imageDim)
}

func (s *embeddingService) embed(ctx context.Context, kind, text string, dimensions int) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: dimensions,
	})
	if s.observer != nil {
		s.observer(kind, err == nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}
