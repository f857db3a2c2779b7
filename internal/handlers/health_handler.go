package handlers

import (
	"net/http"
	"strings"
)

type healthResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Headers map[string]string `json:"headers"`
}

// HealthCheck echoes the request headers, lower-cased and comma-joined.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}
	writeJSON(w, http.StatusOK, healthResponse{Code: http.StatusOK, Message: "success", Headers: headers})
}
