// Package httpapi exposes the local control surface: schedule status
// and alarm rule CRUD.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/achrafouajid/noor-daily/internal/alarm"
	"github.com/achrafouajid/noor-daily/internal/engine"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type Config struct {
	Addr string
}

type Server struct {
	log    logx.Logger
	engine *engine.Service
	rules  *alarm.Rules

	srv *http.Server
}

func New(cfg Config, eng *engine.Service, rules *alarm.Rules, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:8718"
	}

	s := &Server{
		log:    log.With(logx.String("svc", "httpapi")),
		engine: eng,
		rules:  rules,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.registerRoutes(r)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/status", s.getStatus)
	api.GET("/timetable", s.getTimetable)

	alarms := api.Group("/alarms")
	alarms.GET("", s.listAlarms)
	alarms.POST("", s.createAlarm)
	alarms.PUT("/:id", s.updateAlarm)
	alarms.DELETE("/:id", s.deleteAlarm)
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	_ = ctx
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	s.log.Info("http api listening", logx.String("addr", s.srv.Addr))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) getTimetable(c *gin.Context) {
	st := s.engine.Status()
	if len(st.Times) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no timetable available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"locality": st.Locality,
		"date":     st.Date,
		"times":    st.Times,
	})
}

func (s *Server) listAlarms(c *gin.Context) {
	c.JSON(http.StatusOK, s.rules.Snapshot())
}

type alarmRequest struct {
	Anchor        string `json:"anchor" binding:"required"`
	OffsetMinutes int    `json:"offsetMinutes"`
	Message       string `json:"message"`
	Enabled       *bool  `json:"enabled"`
}

func (r alarmRequest) toRule(id string) alarm.Rule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return alarm.Rule{
		ID:            id,
		Anchor:        prayer.Anchor(r.Anchor),
		OffsetMinutes: r.OffsetMinutes,
		Message:       r.Message,
		Enabled:       enabled,
	}
}

func (s *Server) createAlarm(c *gin.Context) {
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := s.rules.Put(c.Request.Context(), req.toRule(""))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateAlarm(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.rules.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alarm not found"})
		return
	}
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := s.rules.Put(c.Request.Context(), req.toRule(id))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteAlarm(c *gin.Context) {
	if err := s.rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
