package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	qe "github.com/tableloom/queryengine"
)

// APIResponse is the standard envelope for non-streaming responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError is the JSON shape of a failed request, derived from an
// EngineError (§7): Kind maps to the HTTP status only here, at the boundary.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// writeError maps an error to the HTTP status §7 specifies for its Kind.
// Only this boundary layer performs that mapping; engine code never does.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	apiErr := &APIError{Code: "INTERNAL_ERROR", Message: err.Error()}

	if ee, ok := err.(*qe.EngineError); ok {
		apiErr.Code = ee.Code
		apiErr.Message = ee.Message
		apiErr.Details = ee.Details
		switch ee.Kind {
		case qe.KindInvalidRequest, qe.KindUnsupported:
			status = http.StatusBadRequest
		case qe.KindNotFound:
			status = http.StatusNotFound
		case qe.KindInternal:
			status = http.StatusInternalServerError
		}
	}

	writeJSON(w, status, APIResponse{Success: false, Error: apiErr})
}

func readJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFilters(r *http.Request) ([]qe.Filter, error) {
	raw := r.URL.Query().Get("filters")
	if raw == "" {
		return nil, nil
	}
	var filters []qe.Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, qe.NewInvalidRequestError(qe.ErrCodeInvalidSpec, "filters query parameter must be a JSON array")
	}
	return filters, nil
}
