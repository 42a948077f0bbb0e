// Package httpx holds the small request helpers shared by every feature router.
package httpx

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
)

const dateLayout = "2006-01-02"

// Binding errors name fields by their JSON key.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// BindJSON decodes the body into dst, writing a 400 and returning false on failure.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperr.Write(c, "bind", apperr.FromBinding(err))
		return false
	}
	return true
}

// Principal returns the authenticated caller, writing a 401 when there is none.
func Principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
		return auth.Principal{}, false
	}
	return p, true
}

// ParseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// OptionalDate parses s when present; field names the input in the error.
func OptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, apperr.Invalid(apperr.FieldError{Field: field, Msg: field + " must be a valid date"})
	}
	return &t, nil
}

// RequiredDate parses s, failing with a field error when it is missing or malformed.
func RequiredDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, apperr.Invalid(apperr.FieldError{Field: field, Msg: field + " is required"})
	}
	t, err := OptionalDate(field, s)
	if err != nil {
		return time.Time{}, err
	}
	return *t, nil
}

// QueryDateRange reads startDate/endDate query parameters.
func QueryDateRange(c *gin.Context) (from, to *time.Time, err error) {
	if from, err = OptionalDate("startDate", c.Query("startDate")); err != nil {
		return nil, nil, err
	}
	if to, err = OptionalDate("endDate", c.Query("endDate")); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
