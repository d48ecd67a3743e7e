package fact

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/sessions/:sessionId/facts", h.ListBySession)
}

type envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func (h *Handler) ListBySession(c echo.Context) error {
	entries, err := h.svc.ListBySession(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: entries})
}
