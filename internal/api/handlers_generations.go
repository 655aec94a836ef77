package api

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"lookbook/server/internal/apperr"
	"lookbook/server/internal/model"
	"lookbook/server/internal/store"

	"github.com/gin-gonic/gin"
)

const maxImageSize = 10 << 20 // 10MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

func (s *Server) createGeneration(c *gin.Context) {
	userID := userIDFromContext(c)

	header, err := c.FormFile("image")
	if err != nil {
		writeError(c, http.StatusBadRequest, "Image file is required", nil)
		return
	}

	prompt := c.PostForm("prompt")
	style := model.Style(c.PostForm("style"))

	// All field errors are collected and returned in a single response.
	var fields []apperr.FieldError
	if promptLen := utf8.RuneCountInString(prompt); promptLen < 3 {
		fields = append(fields, apperr.FieldError{Field: "prompt", Message: "Prompt must be at least 3 characters"})
	} else if promptLen > 500 {
		fields = append(fields, apperr.FieldError{Field: "prompt", Message: "Prompt must be at most 500 characters"})
	}
	if !style.Valid() {
		fields = append(fields, apperr.FieldError{Field: "style", Message: "Style must be one of casual, formal, streetwear, vintage, modern"})
	}
	if header.Size > maxImageSize {
		fields = append(fields, apperr.FieldError{Field: "image", Message: "Image must be 10MB or smaller"})
	}
	if !allowedImageTypes[header.Header.Get("Content-Type")] {
		fields = append(fields, apperr.FieldError{Field: "image", Message: "Only JPEG and PNG images are allowed"})
	}
	if len(fields) > 0 {
		writeError(c, http.StatusUnprocessableEntity, "Validation failed", fields)
		return
	}

	src, err := header.Open()
	if err != nil {
		s.writeAppError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer src.Close()
	uploadName, err := s.ns.SaveUpload(userID, src, header.Filename)
	if err != nil {
		s.writeAppError(c, err)
		return
	}

	gen, err := s.gens.Create(c.Request.Context(), userID, prompt, style, uploadName)
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusCreated, gen, "")
}

func (s *Server) listGenerations(c *gin.Context) {
	userID := userIDFromContext(c)
	limit := parseIntDefault(c.Query("limit"), store.DefaultRecentLimit)

	gens, err := s.gens.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, gens, "")
}

// parseIntDefault falls back for missing, non-numeric or non-positive input.
func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
