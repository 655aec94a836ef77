package api

import (
	"net/http"
	"time"

	"lookbook/server/internal/auth"
	"lookbook/server/internal/files"
	"lookbook/server/internal/generation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	auth    *auth.Service
	gens    *generation.Service
	ns      *files.Namespace
	log     *zap.SugaredLogger
	release bool
}

func NewServer(authSvc *auth.Service, gens *generation.Service, ns *files.Namespace, log *zap.SugaredLogger, release bool) *Server {
	return &Server{
		auth:    authSvc,
		gens:    gens,
		ns:      ns,
		log:     log,
		release: release,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(s.log))

	r.GET("/health", func(c *gin.Context) {
		writeSuccess(c, http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, "")
	})

	v1 := r.Group("/v1")
	v1.POST("/auth/signup", s.signup)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(s.auth, false))
	{
		authed.GET("/auth/me", s.me)
		authed.POST("/generations", s.createGeneration)
		authed.GET("/generations", s.listGenerations)
	}

	fileRoutes := v1.Group("/files")
	fileRoutes.Use(AuthMiddleware(s.auth, true))
	fileRoutes.GET("/:user_id/:filename", s.getFile)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
