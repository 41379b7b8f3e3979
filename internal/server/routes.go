// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, app *App) {
	h := app.Handlers

	if app.UploadsDir != "" {
		e.Static(UploadsPrefix, app.UploadsDir)
	}

	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.GET("/session", h.Session)

	// Voter verification
	api.POST("/voter/otp", h.RequestCode)
	api.POST("/voter/otp/verify", h.VerifyCode)
	api.GET("/voter/status", h.VoterStatus)
	api.POST("/voter/logout", h.VoterLogout)

	// Voting
	api.GET("/elections", h.ListElections)
	api.GET("/elections/:id/candidates", h.ListCandidates)
	api.POST("/votes", h.SubmitVote)

	// Administration
	api.POST("/admin/login", h.AdminLogin)
	api.POST("/admin/logout", h.AdminLogout)
	adm := api.Group("/admin", h.RequireAdmin)
	adm.GET("/elections", h.AdminElections)
	adm.POST("/elections", h.CreateElection)
	adm.GET("/elections/:id/candidates", h.AdminCandidates)
	adm.POST("/elections/:id/candidates", h.AddCandidate)
	adm.GET("/elections/:id/votes.csv", h.ExportVotes)

	// Analytics
	api.GET("/analytics/elections/:id/results", h.Results)
	api.GET("/analytics/elections/:id/events", h.Events)
}
