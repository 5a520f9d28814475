package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wellsteer/wellsteer/internal/alerts"
	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/override"
	"github.com/wellsteer/wellsteer/internal/steering"
	"github.com/wellsteer/wellsteer/internal/survey"
	"github.com/wellsteer/wellsteer/internal/wits"
)

// Handler is the HTTP handler for all /api/v1/* endpoints. It fronts the
// telemetry link, the steering coordinator, the survey aggregator, the
// manual overrides and the alert engine.
type Handler struct {
	link   *wits.Link
	coord  *steering.Coordinator
	agg    *survey.Aggregator
	ovr    *override.Store
	alerts *alerts.Engine
	mux    *http.ServeMux
}

// New creates a Handler wired to the given collaborators and registers all
// routes.
func New(link *wits.Link, coord *steering.Coordinator, agg *survey.Aggregator, ovr *override.Store, eng *alerts.Engine) http.Handler {
	h := &Handler{link: link, coord: coord, agg: agg, ovr: ovr, alerts: eng, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/sample", h.sample)
	h.mux.HandleFunc("/api/v1/nudge", h.nudge)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	h.mux.HandleFunc("/api/v1/connection/state", h.connectionState)
	h.mux.HandleFunc("/api/v1/connection/connect", h.connect)
	h.mux.HandleFunc("/api/v1/connection/disconnect", h.disconnect)
	h.mux.HandleFunc("/api/v1/connection/test", h.testConnection)
	h.mux.HandleFunc("/api/v1/connection/command", h.command)
	h.mux.HandleFunc("/api/v1/connection/config", h.connectionConfig)

	h.mux.HandleFunc("/api/v1/surveys", h.surveys)
	h.mux.HandleFunc("/api/v1/surveys/", h.surveyByID) // subtree, extracts {id}

	h.mux.HandleFunc("/api/v1/target", h.target)
	h.mux.HandleFunc("/api/v1/overrides", h.listOverrides)
	h.mux.HandleFunc("/api/v1/overrides/", h.overrideByField) // subtree, extracts {field}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := h.coord.Snapshot()
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		State:       h.link.State().String(),
		SurveyCount: h.agg.Count(),
		IsRotating:  snap.IsRotating,
	})
}

// snapshot returns GET /api/v1/snapshot, the current derived steering values
// with any manual overrides applied.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.coord.Snapshot())
}

// sample returns GET /api/v1/sample, the latest telemetry sample.
func (h *Handler) sample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := h.coord.LatestSample()
	resp := SampleResponse{Channels: make(map[string]any, len(s.Channels))}
	if !s.Timestamp.IsZero() {
		resp.Timestamp = s.Timestamp.UTC().Format(time.RFC3339)
	}
	for ch, v := range s.Channels {
		key := strconv.Itoa(ch)
		if v.Numeric {
			resp.Channels[key] = v.Num
		} else {
			resp.Channels[key] = v.Text
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// nudge handles POST /api/v1/nudge: a what-if projection for holding the
// given toolface over the current slide.
func (h *Handler) nudge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req NudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	p := h.coord.Nudge(req.ToolFace, req.GravityToolface)
	jsonResp(w, http.StatusOK, NudgeResponse{Inc: p.Inc, Az: p.Az})
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

func (h *Handler) connectionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, StateResponse{State: h.link.State().String()})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.link.Connect(); err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, StateResponse{State: h.link.State().String()})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.link.Disconnect()
	jsonResp(w, http.StatusOK, StateResponse{State: h.link.State().String()})
}

// testConnection opens a throwaway connection and reports reachability
// without touching the live link state.
func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, OKResponse{OK: h.link.TestConnection()})
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		jsonErr(w, http.StatusBadRequest, "invalid command body")
		return
	}
	if err := h.link.SendCommand(req.Command, req.Params); err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, OKResponse{OK: true})
}

// connectionConfig serves GET and PUT on /api/v1/connection/config.
// A PUT replaces the whole config; it takes effect on the next connect.
func (h *Handler) connectionConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, toConfigBody(h.link.Config()))
	case http.MethodPut:
		var body ConnectionConfigBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid json body")
			return
		}
		cfg, err := fromConfigBody(body)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		h.link.UpdateConfig(cfg)
		jsonResp(w, http.StatusOK, toConfigBody(h.link.Config()))
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// surveys serves GET (list) and POST (add) on /api/v1/surveys.
func (h *Handler) surveys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.agg.All())
	case http.MethodPost:
		var rec survey.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if !h.agg.Add(rec) {
			jsonErr(w, http.StatusConflict, "duplicate or near-duplicate survey")
			return
		}
		jsonResp(w, http.StatusCreated, OKResponse{OK: true})
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// surveyByID serves PUT (upsert) and DELETE on /api/v1/surveys/{id}.
func (h *Handler) surveyByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/surveys/")
	if id == "" {
		h.surveys(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var rec survey.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid json body")
			return
		}
		rec.ID = id
		h.agg.Update(rec)
		jsonResp(w, http.StatusOK, OKResponse{OK: true})
	case http.MethodDelete:
		h.agg.Delete(id)
		w.WriteHeader(http.StatusNoContent)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// target serves GET and PUT on /api/v1/target.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t := h.coord.Target()
		jsonResp(w, http.StatusOK, TargetBody{TVD: t.TVD, VS: t.VS, Inclination: t.Inclination, Azimuth: t.Azimuth})
	case http.MethodPut:
		var body TargetBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid json body")
			return
		}
		h.coord.SetTarget(config.TargetConfig{TVD: body.TVD, VS: body.VS, Inclination: body.Inclination, Azimuth: body.Azimuth})
		jsonResp(w, http.StatusOK, body)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.ovr.Values())
}

// overrideByField serves PUT (set) and DELETE (clear) on
// /api/v1/overrides/{field}.
func (h *Handler) overrideByField(w http.ResponseWriter, r *http.Request) {
	field := strings.TrimPrefix(r.URL.Path, "/api/v1/overrides/")
	if field == "" {
		h.listOverrides(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req OverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if field == override.FieldIsRotating {
			v, ok := req.Value.(bool)
			if !ok {
				jsonErr(w, http.StatusBadRequest, "is_rotating takes a boolean value")
				return
			}
			h.ovr.SetRotating(v)
			jsonResp(w, http.StatusOK, OverrideResponse{Field: field, Value: v})
			return
		}
		v, ok := req.Value.(float64)
		if !ok {
			jsonErr(w, http.StatusBadRequest, field+" takes a numeric value")
			return
		}
		stored, err := h.ovr.Set(field, v)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonResp(w, http.StatusOK, OverrideResponse{Field: field, Value: stored})
	case http.MethodDelete:
		if err := h.ovr.Clear(field); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toConfigBody maps the link configuration to its JSON representation.
func toConfigBody(c config.ConnectionConfig) ConnectionConfigBody {
	return ConnectionConfigBody{
		Protocol:          c.Protocol,
		IPAddress:         c.IPAddress,
		Port:              c.Port,
		SerialPort:        c.SerialPort,
		BaudRate:          c.BaudRate,
		WITSLevel:         c.WITSLevel,
		ProxyMode:         c.ProxyMode,
		TCPHost:           c.TCPHost,
		TCPPort:           c.TCPPort,
		AutoConnect:       c.AutoConnect,
		AutoReconnect:     c.AutoReconnect,
		Timeout:           c.Timeout.String(),
		RetryInterval:     c.RetryInterval.String(),
		MaxReconnects:     c.MaxReconnects,
		HeartbeatInterval: c.HeartbeatInterval.String(),
		MaxMissedPongs:    c.MaxMissedPongs,
	}
}

// fromConfigBody parses the JSON form back into a link configuration.
func fromConfigBody(b ConnectionConfigBody) (config.ConnectionConfig, error) {
	c := config.ConnectionConfig{
		Protocol:       b.Protocol,
		IPAddress:      b.IPAddress,
		Port:           b.Port,
		SerialPort:     b.SerialPort,
		BaudRate:       b.BaudRate,
		WITSLevel:      b.WITSLevel,
		ProxyMode:      b.ProxyMode,
		TCPHost:        b.TCPHost,
		TCPPort:        b.TCPPort,
		AutoConnect:    b.AutoConnect,
		AutoReconnect:  b.AutoReconnect,
		MaxReconnects:  b.MaxReconnects,
		MaxMissedPongs: b.MaxMissedPongs,
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *config.Duration
	}{
		{"timeout", b.Timeout, &c.Timeout},
		{"retry_interval", b.RetryInterval, &c.RetryInterval},
		{"heartbeat_interval", b.HeartbeatInterval, &c.HeartbeatInterval},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return config.ConnectionConfig{}, fmt.Errorf("api: %s: %w", f.name, err)
		}
		*f.dst = config.Duration(d)
	}
	// An omitted or zero duration must not reach the link; a Connect with a
	// zero timeout would dial with an already-expired context.
	if c.Timeout <= 0 {
		c.Timeout = config.Duration(config.DefaultConnectTimeout)
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = config.Duration(config.DefaultRetryInterval)
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = config.Duration(config.DefaultHeartbeatInterval)
	}
	return c, nil
}
