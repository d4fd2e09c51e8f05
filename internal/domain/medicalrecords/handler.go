package medicalrecords

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
	api.GET("/medical-records", h.List)
	api.GET("/medical-records/patient/:patientID", h.ListByPatient)
	api.GET("/medical-records/doctor/:doctorID", h.ListByDoctor)
	api.GET("/medical-records/:id", h.Get)
	api.POST("/medical-records", h.Create)
	api.PUT("/medical-records/:id", h.Update)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	filters := map[string]string{}
	for _, k := range []string{"follow_up_required", "date_from", "date_to", "q"} {
		if v := c.QueryParam(k); v != "" {
			filters[k] = v
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), p, filters, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.ListByPatient(c.Request().Context(), p, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	pg := pagination.FromContext(c)
	p := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), p, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	m, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return echo.NewHTTPError(mutation.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "medical_record", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	m, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return mutation.RespondError(c, "medical_record", err)
	}
	return mutation.Respond(c, http.StatusCreated, "medical_record", m)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return mutation.RespondError(c, "medical_record", mutation.Invalid("invalid id"))
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return mutation.RespondError(c, "medical_record", mutation.Invalid(err.Error()))
	}
	p := auth.PrincipalFromContext(c.Request().Context())
	m, err := h.svc.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return mutation.RespondError(c, "medical_record", err)
	}
	return mutation.Respond(c, http.StatusOK, "medical_record", m)
}
