// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/i18n"
	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/services/admin"
	"codeberg.org/oliverandrich/ballot/internal/services/analytics"
	"codeberg.org/oliverandrich/ballot/internal/services/auth"
	"codeberg.org/oliverandrich/ballot/internal/services/otp"
	"codeberg.org/oliverandrich/ballot/internal/services/voting"
)

var (
	errNoSession      = errors.New("no session")
	errInvalidRequest = errors.New("invalid request")
	errForbidden      = errors.New("admin login required")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type errorMapping struct {
	err    error
	key    string
	status int
}

var errorMappings = []errorMapping{
	{errInvalidRequest, "error_invalid_request", http.StatusBadRequest},
	{errNoSession, "error_invalid_request", http.StatusBadRequest},
	{admin.ErrUnsupportedImage, "error_unsupported_image", http.StatusBadRequest},
	{voting.ErrNotVerified, "error_not_verified", http.StatusUnauthorized},
	{auth.ErrInvalidCredentials, "error_unauthorized", http.StatusUnauthorized},
	{auth.ErrAdminDisabled, "error_forbidden", http.StatusForbidden},
	{errForbidden, "error_forbidden", http.StatusForbidden},
	{voting.ErrElectionNotFound, "error_not_found", http.StatusNotFound},
	{voting.ErrCandidateNotFound, "error_not_found", http.StatusNotFound},
	{admin.ErrElectionNotFound, "error_not_found", http.StatusNotFound},
	{analytics.ErrElectionNotFound, "error_not_found", http.StatusNotFound},
	{voting.ErrAlreadyVoted, "error_already_voted", http.StatusConflict},
	{otp.ErrBudgetExhausted, "error_otp_exhausted", http.StatusConflict},
	{otp.ErrAlreadyVerified, "error_already_verified", http.StatusConflict},
	{otp.ErrNoCodeIssued, "error_otp_no_code", http.StatusConflict},
	{otp.ErrExpired, "error_otp_expired", http.StatusGone},
	{otp.ErrMismatch, "error_otp_mismatch", http.StatusUnprocessableEntity},
	{voting.ErrNoCandidates, "error_no_candidates", http.StatusUnprocessableEntity},
	{otp.ErrDispatchFailed, "error_otp_dispatch", http.StatusBadGateway},
	{voting.ErrSubmissionFailed, "error_submission_failed", http.StatusInternalServerError},
}

// classify maps a service error to a status code and a message ID.
func classify(err error) (int, string) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "error_validation"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.key
		}
	}
	return http.StatusInternalServerError, "error_internal"
}

// respondError writes the localized JSON error for err.
func respondError(c echo.Context, err error) error {
	status, key := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}

	resp := ErrorResponse{Error: i18n.T(c.Request().Context(), key)}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
		resp.Detail = verr.Error()
	}
	return c.JSON(status, resp)
}

// ErrorHandler renders errors returned by handlers and middleware, such as
// unknown routes or a missing CSRF token, in the API's error format.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprint(he.Message)
		if he.Code == http.StatusNotFound {
			msg = i18n.T(c.Request().Context(), "error_not_found")
		}
		if writeErr := c.JSON(he.Code, ErrorResponse{Error: msg}); writeErr != nil {
			slog.Error("failed to write error response", "error", writeErr)
		}
		return
	}

	if writeErr := respondError(c, err); writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
