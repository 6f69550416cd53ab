// Package v1 exposes the JSON API over the recommendation core.
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/ai"
	"github.com/shenlehan/fashion-recommendation/ingest"
	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/observability/metrics"
	"github.com/shenlehan/fashion-recommendation/recommend"
	"github.com/shenlehan/fashion-recommendation/session"
	"github.com/shenlehan/fashion-recommendation/store"
	"github.com/shenlehan/fashion-recommendation/weather"
)

// APIV1Service bundles the domain services behind the v1 routes.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	Recommender *recommend.Recommender
	Sessions    *session.Service
	Pipeline    *ingest.Pipeline
	Registry    *ingest.Registry
	Weather     weather.Service
}

func NewAPIV1Service(_ context.Context, instanceProfile *profile.Profile, storeInstance *store.Store, exporter *metrics.Exporter) (*APIV1Service, error) {
	var visionService ai.VisionService
	if instanceProfile.IsGenerationEnabled() {
		visionService = ai.NewVisionService(&ai.VisionConfig{
			APIKey:  instanceProfile.GenerationAPIKey,
			BaseURL: instanceProfile.GenerationBaseURL,
			Model:   instanceProfile.GenerationModel,
		})
	}

	embeddingService := ai.NewEmbeddingService(&ai.EmbeddingConfig{
		APIKey:   instanceProfile.EmbeddingAPIKey,
		BaseURL:  instanceProfile.EmbeddingBaseURL,
		Model:    instanceProfile.EmbeddingModel,
		TextDim:  instanceProfile.EmbeddingTextDim,
		ImageDim: instanceProfile.EmbeddingImageDim,
		Vision:   visionService,
		Observer: exporter.RecordEmbeddingRequest,
	})
	if !instanceProfile.IsEmbeddingEnabled() {
		slog.Warn("embedding provider not configured, running in degraded mode")
	}
	generationService := ai.NewGenerationService(&ai.GenerationConfig{
		APIKey:  instanceProfile.GenerationAPIKey,
		BaseURL: instanceProfile.GenerationBaseURL,
		Model:   instanceProfile.GenerationModel,
	})

	storeInstance.SetCacheObserver(exporter)

	index := recommend.NewStoreIndex(storeInstance)
	embedder := recommend.NewEmbedder(embeddingService)
	retriever := recommend.NewRetriever(index, embedder)

	sessions := session.NewService(storeInstance, time.Duration(instanceProfile.SessionRetentionDays)*24*time.Hour)
	recommender := recommend.NewRecommender(storeInstance, retriever, generationService, sessions, exporter)

	registry := ingest.NewRegistry()
	pipeline := ingest.NewPipeline(storeInstance, embedder, index, visionService, registry)
	pipeline.SetProgressObserver(exporter.SetActiveIngestTasks)

	return &APIV1Service{
		Profile:     instanceProfile,
		Store:       storeInstance,
		Recommender: recommender,
		Sessions:    sessions,
		Pipeline:    pipeline,
		Registry:    registry,
		Weather: weather.NewService(&weather.Config{
			APIKey:  instanceProfile.WeatherAPIKey,
			BaseURL: instanceProfile.WeatherBaseURL,
		}),
	}, nil
}

// RegisterRoutes attaches the v1 routes to the group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/wardrobe/items", s.createWardrobeItem)
	g.GET("/wardrobe/items", s.listWardrobeItems)
	g.DELETE("/wardrobe/items/:id", s.deleteWardrobeItem)

	g.POST("/wardrobe/ingest", s.startIngestion)
	g.GET("/wardrobe/ingest/:id", s.getIngestionTask)
	g.DELETE("/wardrobe/ingest/:id", s.cancelIngestionTask)

	g.POST("/sessions", s.createSession)
	g.GET("/sessions", s.listSessions)
	g.GET("/sessions/:uid", s.getSession)
	g.DELETE("/sessions/:uid", s.deleteSession)
	g.DELETE("/sessions", s.deleteAllSessions)
	g.DELETE("/sessions/:uid/turns/:index", s.deleteTurn)

	g.POST("/sessions/:uid/recommendation", s.proposeOutfit)
	g.POST("/sessions/:uid/adjustment", s.adjustOutfit)
	g.POST("/sessions/:uid/selection", s.recordSelection)
}

// ownerID reads the authenticated owner from the request. Authentication
// itself lives in front of this service; the header carries its result.
func ownerID(c echo.Context) (int32, error) {
	raw := c.Request().Header.Get("X-Owner-ID")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing owner identity")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "malformed owner identity")
	}
	return int32(id), nil
}

// apiError maps domain sentinels onto HTTP statuses.
func apiError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, session.ErrInvalidTurnIndex):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
