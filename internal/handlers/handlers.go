// Package handlers serves the public site, the admin portal and the client
// portal. Every handler answers JSON when the request asks for it and HTML
// otherwise.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/services"
	"github.com/diewo77/agency-portal/validation"
	"github.com/diewo77/agency-portal/view"
)

// jsonClient reports whether the caller speaks JSON, either by asking for
// it or by sending it.
func jsonClient(r *http.Request) bool {
	return httpx.WantsJSON(r) || httpx.IsJSONBody(r)
}

func idParam(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// render writes an HTML page, logging template failures.
func render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	renderStatus(w, r, http.StatusOK, name, data)
}

func renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		logger.FromContext(r.Context()).Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func badID(w http.ResponseWriter, r *http.Request) {
	if jsonClient(r) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	http.NotFound(w, r)
}

// fail reports err for a request that has no form to re-render.
// code names the failed operation for JSON clients, e.g. "failed_to_delete_invoice".
func fail(w http.ResponseWriter, r *http.Request, err error, code string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		if jsonClient(r) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		http.NotFound(w, r)
	case errors.Is(err, services.ErrInvalidInput):
		v, _ := services.Violations(err)
		if jsonClient(r) {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error(code, zap.Error(err))
		if jsonClient(r) {
			httpx.JSONError(w, http.StatusInternalServerError, code, nil)
			return
		}
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
	}
}

// done finishes a successful mutation: JSON clients get payload, browsers
// are redirected.
func done(w http.ResponseWriter, r *http.Request, status int, payload any, redirect string) {
	if jsonClient(r) {
		httpx.JSON(w, status, payload)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// decode fills dst from a JSON body or leaves it to the form parser. It
// returns false after answering a malformed JSON body.
func decode(w http.ResponseWriter, r *http.Request, dst any) (json bool, ok bool) {
	if !httpx.IsJSONBody(r) {
		return false, true
	}
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return true, false
	}
	return true, true
}

func formFloat(r *http.Request, key string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(r.FormValue(key)), 64)
	return f
}

func formUint(r *http.Request, key string) uint {
	n, _ := strconv.ParseUint(strings.TrimSpace(r.FormValue(key)), 10, 64)
	return uint(n)
}

func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "on", "true", "1":
		return true
	}
	return false
}

// formDate parses a yyyy-mm-dd field, recording a violation when it is
// present but malformed. Empty fields return the zero time.
func formDate(r *http.Request, key string, v validation.Violations) time.Time {
	s := strings.TrimSpace(r.FormValue(key))
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(validation.DateLayout, s)
	if err != nil {
		v.Add(key, "invalid_date")
	}
	return t
}
