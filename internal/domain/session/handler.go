package session

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/transcript-ingest", h.Ingest)
	api.GET("/sessions/:sessionId/status", h.Status)
}

type envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func (h *Handler) Ingest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("malformed request body")
	}
	res, err := h.svc.Ingest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: res})
}

func (h *Handler) Status(c echo.Context) error {
	res, err := h.svc.Status(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: res})
}
