package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Params holds pagination parameters extracted from a request.
// Skip is never negative; Limit is clamped to [1, MaxLimit].
type Params struct {
	Skip  int
	Limit int
}

// FromContext extracts skip/limit query parameters from the echo context.
func FromContext(c echo.Context) Params {
	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Skip: skip, Limit: limit}
}

// Normalize clamps arbitrary skip/limit values to the allowed ranges. Used
// by services whose callers are not HTTP handlers.
func Normalize(skip, limit int) Params {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Skip: skip, Limit: limit}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Skip    int         `json:"skip"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, skip int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Skip:    skip,
		HasMore: skip+limit < total,
	}
}
