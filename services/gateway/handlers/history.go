// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/XiaobaiBridge/services/history"
	"github.com/AleutianAI/XiaobaiBridge/services/router"
)

const defaultHistoryLimit = 20

// GetHistory returns the GET /v1/history/:userId handler, serving the
// user's recent exchanges newest first.
func GetHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "history not enabled"})
			return
		}

		userID := c.Param("userId")
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}

		exchanges, err := store.Recent(userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exchanges": exchanges})
	}
}

// HealthCheck reports gateway liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetHelp serves the command usage listing for hosts to surface to
// their users.
func GetHelp(c *gin.Context) {
	c.String(http.StatusOK, router.HelpText)
}
