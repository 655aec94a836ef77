package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := bindingFieldErrors(err); fields != nil {
			writeError(c, http.StatusUnprocessableEntity, "Validation failed", fields)
			return
		}
		writeError(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	user, token, err := s.auth.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	}, "User created successfully")
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := bindingFieldErrors(err); fields != nil {
			writeError(c, http.StatusUnprocessableEntity, "Validation failed", fields)
			return
		}
		writeError(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	user, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	}, "Login successful")
}

// me returns the profile for the authenticated account.
func (s *Server) me(c *gin.Context) {
	user, err := s.auth.UserByID(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, gin.H{"user": user}, "")
}
