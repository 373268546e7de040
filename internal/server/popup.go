package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/types"
)

// Popup request actions.
const (
	ActionGetDomainStats    = "getDomainStats"
	ActionGroupTabsByDomain = "groupTabsByDomain"
)

// Requests answers the popup's queries and commands.
type Requests interface {
	DomainStats(ctx context.Context) (types.StatsResponse, error)
	GroupByDomain(ctx context.Context) error
}

// PopupRequest is a request from the popup or the CLI.
type PopupRequest struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
}

// PopupResponse carries either stats or a group result, echoing the
// request ID.
type PopupResponse struct {
	ID           string                       `json:"id,omitempty"`
	Stats        map[string]*types.DomainStat `json:"stats,omitempty"`
	TotalDomains *int                         `json:"totalDomains,omitempty"`
	Success      *bool                        `json:"success,omitempty"`
	Error        string                       `json:"error,omitempty"`
}

// Answer runs one popup request against req.
func Answer(ctx context.Context, req Requests, r PopupRequest) PopupResponse {
	resp := PopupResponse{ID: r.ID}
	switch r.Action {
	case ActionGetDomainStats:
		stats, err := req.DomainStats(ctx)
		if err != nil {
			applog.Error("popup.stats", err)
			resp.Error = err.Error()
			return resp
		}
		resp.Stats = stats.Stats
		resp.TotalDomains = &stats.TotalDomains
	case ActionGroupTabsByDomain:
		ok := true
		if err := req.GroupByDomain(ctx); err != nil {
			ok = false
			resp.Error = err.Error()
		}
		resp.Success = &ok
	default:
		resp.Error = "unknown action: " + r.Action
	}
	return resp
}

// PopupHandler serves popup requests over a WebSocket, one response per
// request, until the client disconnects.
func PopupHandler(req Requests) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("popup.accept", err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var pr PopupRequest
			if err := json.Unmarshal(data, &pr); err != nil {
				applog.Error("popup.parse", err)
				continue
			}
			applog.Info("popup.request", "action", pr.Action)
			out, err := json.Marshal(Answer(ctx, req, pr))
			if err != nil {
				applog.Error("popup.encode", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	})
}

// Router mounts the extension bridge at "/", the popup WebSocket at
// "/popup" and a JSON API under "/api".
func (s *Server) Router(req Requests) http.Handler {
	r := chi.NewRouter()
	r.Handle("/", s.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"connected": s.Connected()})
	})
	if req == nil {
		return r
	}
	r.Handle("/popup", PopupHandler(req))
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", func(w http.ResponseWriter, hr *http.Request) {
			resp := Answer(hr.Context(), req, PopupRequest{Action: ActionGetDomainStats})
			status := http.StatusOK
			if resp.Error != "" {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, resp)
		})
		r.Post("/group", func(w http.ResponseWriter, hr *http.Request) {
			writeJSON(w, http.StatusOK, Answer(hr.Context(), req, PopupRequest{Action: ActionGroupTabsByDomain}))
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error("http.encode", err)
	}
}
