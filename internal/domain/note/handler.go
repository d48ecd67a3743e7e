package note

import (
	"net/http"

	"github.com/google/uuid"
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
	api.POST("/note-compose", h.Compose)
	api.GET("/notes/:id", h.GetNote)
}

type envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func (h *Handler) Compose(c echo.Context) error {
	var req ComposeRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("malformed request body")
	}
	n, err := h.svc.Compose(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{OK: true, Data: n})
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierror.Validation("invalid note id")
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: n})
}
