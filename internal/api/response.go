package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSONResponse marshals before writing headers so encoding failures can
// still downgrade the status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("api: marshaling response failed", "error", err)
		jsonData = []byte(`{"error":"internal server error"}`)
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonData); err != nil {
		slog.Error("api: writing response failed", "error", err)
	}
}
