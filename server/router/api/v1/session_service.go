package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shenlehan/fashion-recommendation/session"
	"github.com/shenlehan/fashion-recommendation/store"
)

type createSessionRequest struct {
	Preferences store.Preferences `json:"preferences"`
}

type sessionResponse struct {
	*store.ConversationSession
	State session.State `json:"state"`
}

func (s *APIV1Service) sessionResponse(sess *store.ConversationSession) sessionResponse {
	return sessionResponse{
		ConversationSession: sess,
		State:               session.StateOf(sess, time.Now(), s.Sessions.Retention()),
	}
}

func (s *APIV1Service) createSession(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	sess, err := s.Sessions.Create(c.Request().Context(), owner, req.Preferences)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusCreated, s.sessionResponse(sess))
}

const defaultSessionPageSize = 10

func (s *APIV1Service) listSessions(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	limit := defaultSessionPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed limit")
		}
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed offset")
		}
	}
	sessions, err := s.Sessions.List(c.Request().Context(), owner, limit, offset)
	if err != nil {
		return apiError(err)
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, s.sessionResponse(sess))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) getSession(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	sess, err := s.Sessions.Get(c.Request().Context(), owner, c.Param("uid"))
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *APIV1Service) deleteSession(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	if err := s.Sessions.Delete(c.Request().Context(), owner, c.Param("uid")); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) deleteAllSessions(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	deleted, err := s.Sessions.DeleteAll(c.Request().Context(), owner)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *APIV1Service) deleteTurn(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed turn index")
	}
	sess, err := s.Sessions.DeleteTurn(c.Request().Context(), owner, c.Param("uid"), index)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, s.sessionResponse(sess))
}
