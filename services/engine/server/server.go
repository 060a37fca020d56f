// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the execution pipeline over HTTP.
//
// Endpoints:
//
//	POST /v1/execute   run one program
//	POST /v1/batch     run several programs in order
//	GET  /v1/status    subsystem snapshot
//	POST /v1/config    runtime reconfiguration
//	POST /v1/cleanup   drop stale trust records and expired cache entries
//	GET  /healthz      liveness probe
//	GET  /metrics      Prometheus exposition
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PathanWasim/AEGIS/services/engine/pipeline"
)

// maxSourceBytes bounds request payloads. Programs in this language
// are tiny; anything near the limit is abuse, not use.
const maxSourceBytes = 1 << 20

// ExecuteRequest is the body of POST /v1/execute.
type ExecuteRequest struct {
	Source string `json:"source" binding:"required"`
}

// BatchRequest is the body of POST /v1/batch.
type BatchRequest struct {
	Sources []string `json:"sources" binding:"required,min=1"`
}

// Server wraps the pipeline in an HTTP surface.
type Server struct {
	pipe     *pipeline.Pipeline
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New creates a Server. The gatherer must be the registry the pipeline
// was built with so /metrics reflects engine activity; pass nil to
// disable the endpoint's engine metrics and expose an empty registry.
func New(pipe *pipeline.Pipeline, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &Server{pipe: pipe, gatherer: gatherer, logger: logger}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.POST("/execute", s.handleExecute())
	v1.POST("/batch", s.handleBatch())
	v1.GET("/status", s.handleStatus())
	v1.POST("/config", s.handleConfigure())
	v1.POST("/cleanup", s.handleCleanup())
	return router
}

func (s *Server) handleExecute() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
			return
		}
		if len(req.Source) > maxSourceBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "source too large"})
			return
		}
		result := s.pipe.Execute(req.Source)
		s.logger.Info("execute request served",
			"code_hash", truncateHash(result.CodeHash),
			"mode", result.ExecutionMode,
			"success", result.Success)
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) handleBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sources must be a non-empty array"})
			return
		}
		for _, src := range req.Sources {
			if len(src) > maxSourceBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "source too large"})
				return
			}
		}
		batch := s.pipe.ExecuteBatch(req.Sources)
		s.logger.Info("batch request served",
			"total", batch.Total,
			"succeeded", batch.Succeeded,
			"failed", batch.Failed)
		c.JSON(http.StatusOK, batch)
	}
}

func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.pipe.Status())
	}
}

func (s *Server) handleConfigure() gin.HandlerFunc {
	return func(c *gin.Context) {
		var settings pipeline.Settings
		if err := c.ShouldBindJSON(&settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
			return
		}
		s.pipe.Configure(settings)
		c.JSON(http.StatusOK, gin.H{"status": "applied"})
	}
}

func (s *Server) handleCleanup() gin.HandlerFunc {
	return func(c *gin.Context) {
		stale, expired := s.pipe.Cleanup()
		c.JSON(http.StatusOK, gin.H{
			"stale_trust_records":   stale,
			"expired_cache_entries": expired,
		})
	}
}

// ListenAndServe blocks serving HTTP on addr until Shutdown is called
// or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("engine HTTP server listening", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func truncateHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
