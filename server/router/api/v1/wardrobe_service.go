package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shenlehan/fashion-recommendation/store"
)

type createWardrobeItemRequest struct {
	Name     string         `json:"name"`
	Color    string         `json:"color"`
	Material string         `json:"material"`
	ImageRef string         `json:"imageRef"`
	Category store.Category `json:"category"`
	Seasons  []store.Season `json:"seasons"`
}

func (s *APIV1Service) createWardrobeItem(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req createWardrobeItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	item, err := s.Store.CreateWardrobeItem(c.Request().Context(), &store.WardrobeItem{
		Name:     req.Name,
		Color:    req.Color,
		Material: req.Material,
		ImageRef: req.ImageRef,
		Category: req.Category,
		Seasons:  req.Seasons,
		OwnerID:  owner,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *APIV1Service) listWardrobeItems(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	find := &store.FindWardrobeItem{OwnerID: &owner}
	if raw := c.QueryParam("category"); raw != "" {
		category := store.Category(raw)
		if !category.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
		find.Category = &category
	}
	items, err := s.Store.ListWardrobeItems(c.Request().Context(), find)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *APIV1Service) deleteWardrobeItem(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed item id")
	}
	ctx := c.Request().Context()
	item, err := s.Store.GetWardrobeItem(ctx, id)
	if err != nil {
		return apiError(err)
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	if item.OwnerID != owner {
		return echo.NewHTTPError(http.StatusForbidden, "item belongs to another owner")
	}
	// The embedding record goes first so a failure midway leaves the
	// item outside the index rather than orphaned inside it.
	if err := s.Store.DeleteEmbeddingRecord(ctx, id); err != nil {
		return apiError(err)
	}
	if err := s.Store.DeleteWardrobeItem(ctx, &store.DeleteWardrobeItem{ID: id}); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
