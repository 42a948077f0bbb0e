package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/irma-project/irma-backend/internal/logging"
)

// Write renders err as the JSON error body for its kind. Validation and state
// conflicts use {errors:[{msg}]}; everything else uses {msg}. Unexpected errors
// are logged and reported to the caller as a generic server error.
func Write(c *gin.Context, operation string, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Unexpected("Server error", err)
	}

	switch e.Kind {
	case KindValidation, KindConflict:
		fields := e.Fields
		if len(fields) == 0 {
			fields = []FieldError{{Msg: e.Msg}}
		}
		c.JSON(e.Kind.Status(), gin.H{"errors": fields})
	case KindUnexpected:
		logging.FromContext(c.Request.Context()).Error(operation, err)
		c.JSON(e.Kind.Status(), gin.H{"msg": "Server error"})
	default:
		c.JSON(e.Kind.Status(), gin.H{"msg": e.Msg})
	}
}

// FromBinding converts a gin binding failure into a validation error with one
// message per offending field.
func FromBinding(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validation("Invalid request body")
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: lowerFirst(fe.Field()), Msg: bindingMessage(fe)})
	}
	return Invalid(fields...)
}

func bindingMessage(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return "Please include a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
