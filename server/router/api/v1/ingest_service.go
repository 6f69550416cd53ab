package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shenlehan/fashion-recommendation/ingest"
)

type startIngestionRequest struct {
	Items []ingest.ItemInput `json:"items"`
}

type startIngestionResponse struct {
	TaskID string `json:"taskId"`
}

func (s *APIV1Service) startIngestion(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req startIngestionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty batch")
	}
	taskID := s.Pipeline.Start(c.Request().Context(), owner, req.Items)
	return c.JSON(http.StatusAccepted, startIngestionResponse{TaskID: taskID})
}

func (s *APIV1Service) getIngestionTask(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	task, ok := s.Registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if task.OwnerID != owner {
		return echo.NewHTTPError(http.StatusForbidden, "task belongs to another owner")
	}
	return c.JSON(http.StatusOK, task)
}

func (s *APIV1Service) cancelIngestionTask(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	task, ok := s.Registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if task.OwnerID != owner {
		return echo.NewHTTPError(http.StatusForbidden, "task belongs to another owner")
	}
	if !s.Registry.Cancel(task.ID) {
		return echo.NewHTTPError(http.StatusConflict, "task already finished")
	}
	return c.NoContent(http.StatusAccepted)
}
