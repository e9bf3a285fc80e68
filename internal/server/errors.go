package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/lokma/internal/apperror"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound    = errors.New("not_found")
	ErrRateLimited = errors.New("rate_limited")
)

var codeStatus = map[apperror.Code]int{
	apperror.CodeValidation:             http.StatusBadRequest,
	apperror.CodeNotFound:               http.StatusNotFound,
	apperror.CodeAlreadyCancelled:       http.StatusConflict,
	apperror.CodeAlreadyPaid:            http.StatusConflict,
	apperror.CodeInvalidStateTransition: http.StatusConflict,
	apperror.CodeConflict:               http.StatusConflict,
	apperror.CodeCounterAllocation:      http.StatusServiceUnavailable,
}

var internalError = errorPayload{Type: "internal_error", Message: "internal server error"}

// ErrorHandlingMiddleware renders the last error a handler attached, unless
// the handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(last.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// bindError reports gin binding failures per field, using the json or form
// names registered with the validator.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := &ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
		for _, fe := range fieldErrs {
			out.Errors = append(out.Errors, ValidationError{
				Field:   fe.Field(),
				Code:    fe.Tag(),
				Message: "failed on " + fe.Tag(),
			})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		message := "invalid value type"
		if typeErr.Type != nil {
			message = "expected " + typeErr.Type.String()
		}
		return newValidationError(typeErr.Field, "invalid_type", message)
	}
	return newValidationError("request", "invalid_request", "invalid request")
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(apperror.CodeValidation),
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var coded *apperror.Error
	if errors.As(err, &coded) {
		status, ok := codeStatus[coded.Code]
		if !ok {
			return http.StatusInternalServerError, internalError
		}
		payload := errorPayload{Type: string(coded.Code), Message: coded.Message}
		if coded.Code == apperror.CodeValidation && coded.Field != "" {
			payload.Errors = []ValidationError{{Field: coded.Field, Code: "invalid", Message: coded.Message}}
		}
		return status, payload
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: string(apperror.CodeNotFound), Message: "not found"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	default:
		return http.StatusInternalServerError, internalError
	}
}

// classifyErrorForLog feeds error_type and error_code on request log lines.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	return payload.Type, string(apperror.CodeOf(err))
}
