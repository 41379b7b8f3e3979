// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/services/session"
)

// Context is a custom Echo context carrying the request's session.
type Context struct {
	echo.Context
	Session *session.Data
}

// From returns the custom context, or nil if c was not wrapped.
func From(c echo.Context) *Context {
	cc, _ := c.(*Context)
	return cc
}

// SessionID returns the session ID, or an empty string without a session.
// It is safe to call on a nil Context.
func (c *Context) SessionID() string {
	if c == nil || c.Session == nil {
		return ""
	}
	return c.Session.ID
}

// IsAdmin reports whether an administrator is logged in.
func (c *Context) IsAdmin() bool {
	return c != nil && c.Session != nil && c.Session.Admin
}

// CSRFToken returns the token set by the CSRF middleware.
func (c *Context) CSRFToken() string {
	token, _ := c.Get("csrf").(string)
	return token
}
