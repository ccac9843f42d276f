package controlapi

import (
	"encoding/json"
	"net/http"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
	"github.com/incendiarybean/proxy-address-blocker/requestlog"
	"github.com/incendiarybean/proxy-address-blocker/trafficfilter"
)

// writeJSON serializes payload as the response body, setting
// Content-Type and statusCode first. Every handler in this package
// goes through this one function so the response shape never drifts
// handler to handler.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"internal encoding error"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(statusCode)
	w.Write(body) //nolint:errcheck
}

// writeError logs the failure and writes a {"error": "..."} body. The
// message sent to the client is always the caller-supplied string,
// never a raw error, so internals never leak over the wire.
func writeError(w http.ResponseWriter, statusCode int, message string, log *logger.Logger) {
	log.Warning("control api request failed", "status", statusCode, "message", message)
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusResponse is the body returned by GET /api/proxy/status.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	RunTime int64  `json:"runTimeSeconds"`
}

func newStatusResponse(p *proxy.Proxy) statusResponse {
	status := p.Status()
	return statusResponse{
		Status:  status.Kind.String(),
		Message: status.Message,
		RunTime: p.RunTime(),
	}
}

// filterResponse is the body returned by GET /api/proxy/filter.
type filterResponse struct {
	Enabled  bool     `json:"enabled"`
	Polarity string   `json:"polarity"`
	Patterns []string `json:"patterns"`
}

func newFilterResponse(snapshot trafficfilter.Snapshot) filterResponse {
	return filterResponse{
		Enabled:  snapshot.Enabled,
		Polarity: snapshot.Polarity.String(),
		Patterns: snapshot.Patterns,
	}
}

// requestsResponse is the body returned by GET /api/proxy/requests.
type requestsResponse struct {
	Requests []requestlog.Record `json:"requests"`
}

// patternRequest is the body accepted by the filter-list mutation
// endpoints that take a single value.
type patternRequest struct {
	Value string `json:"value"`
}

// patternListRequest is the body accepted by PUT /api/proxy/filter/list.
type patternListRequest struct {
	Values []string `json:"values"`
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
