package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/pkg/models"
)

// ──────────────────────────────────────────────────────────────────
// Error Envelope
//
// Every failure is {"error": {"code", "message", "field"}}. Field uses the
// request JSON names, so matcher and validator field names are mapped here.
// ──────────────────────────────────────────────────────────────────

// Error codes returned in models.ErrorBody.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeBadJSON        = "BAD_JSON"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// wireFields maps matcher field names to request JSON names.
var wireFields = map[string]string{
	matcher.FieldTarget:     "target",
	matcher.FieldCandidates: "values",
	matcher.FieldMaxSize:    "maxDepth",
}

// fieldError is a validation failure carrying the JSON field at fault.
type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string { return e.field + ": " + e.msg }

func invalidField(field, msg string) error { return &fieldError{field: field, msg: msg} }

func respondError(c *gin.Context, status int, code, message, field string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": models.ErrorBody{Code: code, Message: message, Field: field},
	})
}

// errorBody classifies err into an HTTP status and wire body. Binding,
// field and matcher request errors become 400 with the field named.
func errorBody(err error) (int, models.ErrorBody) {
	var fe *fieldError
	if errors.As(err, &fe) {
		return http.StatusBadRequest, models.ErrorBody{Code: ErrCodeInvalidRequest, Message: fe.msg, Field: fe.field}
	}

	var reqErr *matcher.RequestError
	if errors.As(err, &reqErr) {
		field := reqErr.Field
		if f, ok := wireFields[field]; ok {
			field = f
		} else if strings.HasPrefix(field, matcher.FieldCandidates) {
			field = "values" + strings.TrimPrefix(field, matcher.FieldCandidates)
		}
		return http.StatusBadRequest, models.ErrorBody{Code: ErrCodeInvalidRequest, Message: reqErr.Reason, Field: field}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		v := verrs[0]
		return http.StatusBadRequest, models.ErrorBody{
			Code:    ErrCodeInvalidRequest,
			Message: validationMessage(v),
			Field:   v.Field(),
		}
	}

	return http.StatusInternalServerError, models.ErrorBody{Code: ErrCodeInternal, Message: "internal error"}
}

// bindErrorBody classifies an error from ShouldBindJSON or ReadJSON: tag
// validation failures name their field, anything else is a malformed body.
func bindErrorBody(err error) (int, models.ErrorBody) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return errorBody(err)
	}
	return http.StatusBadRequest, models.ErrorBody{Code: ErrCodeBadJSON, Message: "malformed JSON body: " + err.Error()}
}

func validationMessage(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + lowerFirst(v.Param()) + " is absent"
	case "min":
		return "must be at least " + v.Param()
	default:
		return "failed " + v.Tag() + " validation"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report JSON names ("maxDepth") instead
// of Go field names in FieldError.Field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}
