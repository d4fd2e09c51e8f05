package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a validated limit/offset pair taken from list query parameters.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the limit and offset query parameters. Missing or
// malformed values fall back to the defaults; limit is capped at MaxLimit so
// a single request cannot drag an unbounded result set through the API.
func FromContext(c echo.Context) Params {
	limit := positiveOr(c.QueryParam("limit"), DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{
		Limit:  limit,
		Offset: positiveOr(c.QueryParam("offset"), 0),
	}
}

// positiveOr parses raw as a positive integer, returning fallback for
// anything missing, malformed, zero, or negative.
func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Response is the envelope for paginated list endpoints.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// NewResponse wraps one page of results. HasMore tells the client whether
// another page exists past this one.
func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
