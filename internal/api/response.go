package api

import (
	"errors"
	"net/http"

	"lookbook/server/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Message string             `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func writeSuccess(c *gin.Context, status int, data any, message string) {
	body := gin.H{
		"success": true,
		"data":    data,
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func writeError(c *gin.Context, status int, message string, fields []apperr.FieldError) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   errorBody{Message: message, Errors: fields},
	})
}

// writeAppError maps the closed error taxonomy to the wire. Anything outside
// it becomes a 500; the raw message is only exposed outside release mode.
func (s *Server) writeAppError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeError(c, ae.Status, ae.Message, ae.Fields)
		return
	}
	s.log.Errorw("unhandled error",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	message := "Something went wrong"
	if !s.release {
		message = err.Error()
	}
	writeError(c, http.StatusInternalServerError, message, nil)
}

func writeUnauthorized(c *gin.Context, message string) {
	writeError(c, http.StatusUnauthorized, message, nil)
}

// bindingFieldErrors converts validator failures from gin's binding layer
// into the full list of field errors returned in a 422.
func bindingFieldErrors(err error) []apperr.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperr.FieldError{Field: jsonFieldName(fe.Field()), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return capitalize(field) + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return capitalize(field) + " must be at least " + fe.Param() + " characters"
	case "max":
		return capitalize(field) + " must be at most " + fe.Param() + " characters"
	default:
		return capitalize(field) + " is invalid"
	}
}

func jsonFieldName(structField string) string {
	if structField == "" {
		return structField
	}
	return string(structField[0]|0x20) + structField[1:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]&^0x20) + s[1:]
}
