package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shenlehan/fashion-recommendation/recommend"
	"github.com/shenlehan/fashion-recommendation/store"
)

type proposeOutfitRequest struct {
	City     string `json:"city"`
	Occasion string `json:"occasion"`
	Style    string `json:"style"`
	Color    string `json:"color"`
}

type adjustOutfitRequest struct {
	Request string `json:"request"`
	City    string `json:"city"`
}

type outfitResponse struct {
	Description string                `json:"description"`
	Items       []*store.WardrobeItem `json:"items"`
	Degraded    bool                  `json:"degraded"`
}

func toOutfitResponse(outfit *recommend.Outfit) outfitResponse {
	return outfitResponse{
		Description: outfit.Description,
		Items:       outfit.Items,
		Degraded:    outfit.Degraded,
	}
}

// situationFor resolves weather for the city and folds the request's
// preferences into a situation context.
func (s *APIV1Service) situationFor(c echo.Context, city, occasion, style, color string) (recommend.SituationContext, error) {
	conditions, err := s.Weather.Current(c.Request().Context(), city)
	if err != nil {
		return recommend.SituationContext{}, apiError(err)
	}
	return recommend.SituationContext{
		TemperatureC: conditions.TemperatureC,
		Condition:    conditions.Condition,
		Occasion:     occasion,
		Style:        style,
		ColorTone:    color,
	}, nil
}

func (s *APIV1Service) proposeOutfit(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req proposeOutfitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	situation, err := s.situationFor(c, req.City, req.Occasion, req.Style, req.Color)
	if err != nil {
		return err
	}
	outfit, err := s.Recommender.Propose(c.Request().Context(), owner, c.Param("uid"), situation)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, toOutfitResponse(outfit))
}

func (s *APIV1Service) adjustOutfit(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req adjustOutfitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Request == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty adjustment request")
	}
	situation, err := s.situationFor(c, req.City, "", "", "")
	if err != nil {
		return err
	}
	outfit, err := s.Recommender.Adjust(c.Request().Context(), owner, c.Param("uid"), req.Request, situation)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, toOutfitResponse(outfit))
}

type recordSelectionRequest struct {
	ItemIDs     []int64 `json:"itemIds"`
	Description string  `json:"description"`
}

func (s *APIV1Service) recordSelection(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req recordSelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := s.Recommender.RecordSelection(c.Request().Context(), owner, c.Param("uid"), req.ItemIDs, req.Description); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
