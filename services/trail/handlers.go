// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trail

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
	"github.com/AleutianAI/trailgraph/services/trail/rebuild"
)

// Handlers contains the HTTP handlers for the trail service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/trail/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, h.svc.Health())
}

// HandleStats handles GET /v1/trail/stats.
//
// Response:
//
//	200 OK: StatsResponse
//	503 Service Unavailable: No graph could be built
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStats")

	resp, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleErrors handles GET /v1/trail/errors.
//
// Query Parameters:
//
//	code - Only return errors with this code (optional)
//
// Response:
//
//	200 OK: ErrorsResponse
func (h *Handlers) HandleErrors(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleErrors")

	resp, err := h.svc.Errors(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if code := c.Query("code"); code != "" {
		filtered := make([]intake.BuildError, 0, len(resp.Errors))
		for _, be := range resp.Errors {
			if be.Code == code {
				filtered = append(filtered, be)
			}
		}
		resp = &ErrorsResponse{BuildID: resp.BuildID, Errors: filtered}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleNeighbours handles GET /v1/trail/neighbours/*id.
//
// Response:
//
//	200 OK: NeighboursResponse
//	400 Bad Request: Empty ID
//	404 Not Found: Unknown node
func (h *Handlers) HandleNeighbours(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleNeighbours")

	resp, err := h.svc.Neighbours(c.Request.Context(), nodeParam(c))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTrail handles GET /v1/trail/trail/*id.
//
// Response:
//
//	200 OK: TrailResponse
//	400 Bad Request: Empty ID
//	404 Not Found: Unknown node
func (h *Handlers) HandleTrail(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTrail")

	resp, err := h.svc.Trail(c.Request.Context(), nodeParam(c))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleIndex handles GET /v1/trail/index/*id.
//
// Query Parameters:
//
//	direction - up, same, down, next or prev (default: down)
//	link_style - plain, wiki or markdown (default: configured)
//	aliases - true or false (default: configured)
//	reverse - true or false (default: true for up)
//	explicit_only - true or false (default: false)
//	format - "text" returns text/plain instead of JSON
//
// Response:
//
//	200 OK: IndexResponse or text/plain
//	400 Bad Request: Invalid parameter
//	404 Not Found: Unknown node
func (h *Handlers) HandleIndex(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIndex")

	req := IndexRequest{
		ID:        nodeParam(c),
		Direction: c.Query("direction"),
		LinkStyle: c.Query("link_style"),
	}
	var err error
	if req.ShowAliases, err = boolQuery(c, "aliases"); err != nil {
		writeError(c, logger, err)
		return
	}
	if req.Reverse, err = boolQuery(c, "reverse"); err != nil {
		writeError(c, logger, err)
		return
	}
	explicitOnly, err := boolQuery(c, "explicit_only")
	if err != nil {
		writeError(c, logger, err)
		return
	}
	req.ExplicitOnly = explicitOnly != nil && *explicitOnly

	resp, err := h.svc.Index(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, resp.Text)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTraverse handles POST /v1/trail/traverse.
//
// Request Body:
//
//	TraverseRequest
//
// Response:
//
//	200 OK: TraverseResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown start node
func (h *Handlers) HandleTraverse(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTraverse")

	var req TraverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Traverse(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if resp.Truncated {
		logger.Info("Traversal truncated", "start", req.Start, "steps", resp.Steps)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRebuild handles POST /v1/trail/rebuild.
//
// Response:
//
//	200 OK: StatsResponse for the new graph
//	409 Conflict: A newer rebuild overtook this one
//	503 Service Unavailable: A source could not be read
func (h *Handlers) HandleRebuild(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRebuild")

	resp, err := h.svc.Rebuild(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("Rebuild complete",
		"build_id", resp.BuildID,
		"nodes", resp.Graph.NodeCount,
		"edges", resp.Graph.EdgeCount,
	)
	c.JSON(http.StatusOK, resp)
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	msg := "Internal error"

	switch {
	case errors.Is(err, ErrEmptyID), errors.Is(err, ErrInvalidRequest):
		status, code, msg = http.StatusBadRequest, "INVALID_REQUEST", "Invalid request"
	case errors.Is(err, graph.ErrNodeNotFound):
		status, code, msg = http.StatusNotFound, "NODE_NOT_FOUND", "Node not found"
	case errors.Is(err, rebuild.ErrSuperseded):
		status, code, msg = http.StatusConflict, "REBUILD_SUPERSEDED", "Rebuild superseded"
	case errors.Is(err, intake.ErrSourceUnavailable), errors.Is(err, rebuild.ErrNoBuilder):
		status, code, msg = http.StatusServiceUnavailable, "GRAPH_UNAVAILABLE", "Graph unavailable"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", code)
	} else {
		logger.Debug("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code, Details: err.Error()})
}

// nodeParam returns the catch-all node ID without its leading slash.
func nodeParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("id"), "/")
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(c *gin.Context, key string) (*bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}
	return &v, nil
}

// getOrCreateRequestID extracts or generates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
