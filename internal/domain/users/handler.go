package users

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/mutation"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me, auth.RequireAuth())

	api.GET("/users", h.List)
	api.GET("/users/:id", h.Get)
	api.POST("/users", h.Create)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "user", mutation.Invalid(err.Error()))
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return mutation.RespondError(c, "user", err)
	}
	return mutation.Respond(c, http.StatusCreated, "user", u)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return loginError(c, http.StatusBadRequest, err.Error())
	}
	u, token, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		// Bad credentials answer 401 rather than the usual 403 for denials.
		status := mutation.StatusOf(err)
		if errors.Is(err, mutation.ErrDenied) {
			status = http.StatusUnauthorized
		}
		return loginError(c, status, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":   token,
		"user":    u,
		"success": true,
		"errors":  []string{},
	})
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.Me(c.Request().Context(), p)
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "user", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return mutation.RespondError(c, "user", err)
	}
	return mutation.Respond(c, http.StatusCreated, "user", u)
}

func loginError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{
		"token":   nil,
		"user":    nil,
		"success": false,
		"errors":  []string{msg},
	})
}
