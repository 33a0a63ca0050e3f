package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse writes the API's error envelope: a machine-readable error
// code plus a human-readable message. The encoding error is returned so
// handlers can log it.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes data as a JSON response. For 200 the implicit status from
// the first body write is used, so a late encoding failure is not preceded
// by a committed header.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
