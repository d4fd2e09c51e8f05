package patients

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
	api.GET("/patients", h.List)
	api.GET("/patients/search", h.Search)
	api.GET("/patients/mrn/:mrn", h.GetByMRN)
	api.GET("/patients/:id", h.Get)
	api.POST("/patients", h.Create)
	api.PUT("/patients/:id", h.Update)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), p, c.QueryParam("blood_type"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	filters := map[string]string{}
	for _, k := range []string{"q", "blood_type"} {
		if v := c.QueryParam(k); v != "" {
			filters[k] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), p, filters, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	pat, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, pat)
}

func (h *Handler) GetByMRN(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pat, err := h.svc.GetByMRN(c.Request().Context(), p, c.Param("mrn"))
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, pat)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "patient", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	pat, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return mutation.RespondError(c, "patient", err)
	}
	return mutation.Respond(c, http.StatusCreated, "patient", pat)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return mutation.RespondError(c, "patient", mutation.Invalid("invalid id"))
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "patient", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	pat, err := h.svc.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return mutation.RespondError(c, "patient", err)
	}
	return mutation.Respond(c, http.StatusOK, "patient", pat)
}
