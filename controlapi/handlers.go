package controlapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
)

// ProxyHandler exposes the *proxy.Proxy Control API surface as HTTP
// endpoints. Every method is a thin translation layer: decode, call a
// Proxy method, encode. No lifecycle or filter logic lives here.
type ProxyHandler struct {
	proxy  *proxy.Proxy
	logger *logger.Logger
}

// NewProxyHandler constructs a ProxyHandler bound to a single Proxy
// instance. The Control API has exactly one Proxy per process.
func NewProxyHandler(p *proxy.Proxy, log *logger.Logger) *ProxyHandler {
	return &ProxyHandler{proxy: p, logger: log}
}

// Run handles POST /api/proxy/run.
func (h *ProxyHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.proxy.Run()
	writeJSON(w, http.StatusAccepted, newStatusResponse(h.proxy))
}

// Stop handles POST /api/proxy/stop.
func (h *ProxyHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.proxy.Stop()
	writeJSON(w, http.StatusAccepted, newStatusResponse(h.proxy))
}

// Status handles GET /api/proxy/status.
func (h *ProxyHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(h.proxy))
}

// Requests handles GET /api/proxy/requests.
func (h *ProxyHandler) Requests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requestsResponse{Requests: h.proxy.Requests()})
}

// Filter handles GET /api/proxy/filter.
func (h *ProxyHandler) Filter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// ToggleFilterEnabled handles POST /api/proxy/filter/enabled.
func (h *ProxyHandler) ToggleFilterEnabled(w http.ResponseWriter, r *http.Request) {
	h.proxy.ToggleFilterEnabled()
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// ToggleFilterPolarity handles POST /api/proxy/filter/polarity.
func (h *ProxyHandler) ToggleFilterPolarity(w http.ResponseWriter, r *http.Request) {
	h.proxy.ToggleFilterPolarity()
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// UpdateFilterList handles POST /api/proxy/filter/list: add-or-remove
// a single pattern.
func (h *ProxyHandler) UpdateFilterList(w http.ResponseWriter, r *http.Request) {
	var body patternRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	h.proxy.UpdateFilterList(body.Value)
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// UpdateFilterListItem handles PUT /api/proxy/filter/list/{index}: edit
// one pattern in place.
func (h *ProxyHandler) UpdateFilterListItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer", h.logger)
		return
	}

	var body patternRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	h.proxy.UpdateFilterListItem(index, body.Value)
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// SetFilterList handles PUT /api/proxy/filter/list: replace the whole
// pattern list.
func (h *ProxyHandler) SetFilterList(w http.ResponseWriter, r *http.Request) {
	var body patternListRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	h.proxy.SetFilterList(body.Values)
	writeJSON(w, http.StatusOK, newFilterResponse(h.proxy.Filter()))
}

// healthResponse is the body returned by GET /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health: the minimum liveness signal, independent
// of the Proxy's own lifecycle state.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
