package doctors

import (
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
	api.GET("/doctors", h.List)
	api.GET("/doctors/search", h.Search)
	api.GET("/doctors/license/:license", h.GetByLicense)
	api.GET("/doctors/:id", h.Get)
	api.POST("/doctors", h.Create)
	api.PUT("/doctors/:id", h.Update)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), p, c.QueryParam("specialization"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	params := map[string]string{}
	for _, k := range []string{"q", "specialization"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), p, params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	d, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetByLicense(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	d, err := h.svc.GetByLicense(c.Request().Context(), p, c.Param("license"))
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "doctor", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	d, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return mutation.RespondError(c, "doctor", err)
	}
	return mutation.Respond(c, http.StatusCreated, "doctor", d)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return mutation.RespondError(c, "doctor", mutation.Invalid("invalid id"))
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "doctor", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	d, err := h.svc.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return mutation.RespondError(c, "doctor", err)
	}
	return mutation.Respond(c, http.StatusOK, "doctor", d)
}
