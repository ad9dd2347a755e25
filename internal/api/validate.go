package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

type modeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type learningRequest struct {
	Pair string `param:"pair" validate:"required"`
}

type tradesRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

// bindRequest binds, applies defaults and validates req. A non-nil result
// is ready to send as a 400 body.
func bindRequest(c echo.Context, req any) []ErrorDetail {
	if err := c.Bind(req); err != nil {
		return details(err)
	}
	if err := defaults.Set(req); err != nil {
		return details(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return details(err)
	}
	return nil
}

func details(err error) []ErrorDetail {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ErrorDetail{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ErrorDetail{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []ErrorDetail{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}
