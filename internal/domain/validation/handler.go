package validation

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
	api.POST("/validation-gate", h.Evaluate)
}

type envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func (h *Handler) Evaluate(c echo.Context) error {
	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("malformed request body")
	}
	res, err := h.svc.Evaluate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: res})
}
