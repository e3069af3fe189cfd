package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "QR Attendance API"
	serviceVersion = "1.0.0"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		checks[name] = "ok"
		if err := h.Checks[name](ctx); err != nil {
			checks[name] = "error"
			status = "degraded"
			h.log.Error().Err(err).Str("check", name).Msg("health check failed")
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResponse{
		Status:      status,
		Service:     serviceName,
		Version:     serviceVersion,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(startedAt).Round(time.Second).String(),
		Environment: h.cfg.Environment,
		Checks:      checks,
	})
}

type surfaceInfo struct {
	BaseURL     string `json:"base_url"`
	Guard       string `json:"guard"`
	Description string `json:"description"`
}

func (h HandlerSet) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    serviceName,
		"version": serviceVersion,
		"contexts": map[string]surfaceInfo{
			"users": {
				BaseURL:     "/api/users",
				Guard:       "api",
				Description: "Full system management for administrators and managers",
			},
			"employees": {
				BaseURL:     "/api/employees",
				Guard:       "employee",
				Description: "Self-service for employees (check-in/check-out)",
			},
		},
		"locales": h.cfg.Locale.Supported,
	})
}
