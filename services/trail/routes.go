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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers all trail routes with the router.
//
// Description:
//
//	Registers all /v1/trail/* endpoints with the given Gin router group.
//	Node IDs are paths and may contain slashes, so node routes use a
//	catch-all parameter.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/trail/health - Liveness and current build
//	GET  /v1/trail/stats - Graph statistics
//	GET  /v1/trail/errors - Build errors of the current graph
//	GET  /v1/trail/neighbours/*id - Out-edges by direction
//	GET  /v1/trail/trail/*id - Routes up to the roots
//	GET  /v1/trail/index/*id - Rendered list index
//	POST /v1/trail/traverse - Bounded multi-path walk
//	POST /v1/trail/rebuild - Rebuild and swap the graph
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	tg := rg.Group("/trail")
	{
		tg.GET("/health", handlers.HandleHealth)
		tg.GET("/stats", handlers.HandleStats)
		tg.GET("/errors", handlers.HandleErrors)
		tg.GET("/neighbours/*id", handlers.HandleNeighbours)
		tg.GET("/trail/*id", handlers.HandleTrail)
		tg.GET("/index/*id", handlers.HandleIndex)
		tg.POST("/traverse", handlers.HandleTraverse)
		tg.POST("/rebuild", handlers.HandleRebuild)
	}
}

// NewRouter builds the HTTP engine for the service.
//
// Description:
//
//	Installs recovery and otelgin tracing, mounts the trail routes under
//	/v1 and, when metrics is non-nil, serves it at /metrics.
//
// Inputs:
//
//	svc - The service to expose
//	serviceName - Name reported on server spans
//	metrics - Prometheus handler, or nil
func NewRouter(svc *Service, serviceName string, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
