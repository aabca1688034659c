// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/transform"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Geometry problems
// and unknown methods are client errors; everything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var geomErr *imaging.GeometryError
	var methodErr *transform.UnknownMethodError
	var dirErr *transform.DirectionError

	switch {
	case errors.As(err, &geomErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "unsupported_geometry",
			"detail": geomErr.Error(),
		})
	case errors.As(err, &methodErr), errors.As(err, &dirErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_request",
			"detail": err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "internal",
			"detail": err.Error(),
		})
	}
}

// writeBadRequest writes a 400 response with the given detail.
func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":  "invalid_request",
		"detail": detail,
	})
}

// writeNotFound writes a 404 Not Found response.
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// writeUnauthorized writes a 401 Unauthorized response.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}
