package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

// WSHandler exposes session lobbies over websockets: a connected client is
// joined to the lobby, receives snapshot events as the lobby changes, and can
// request refreshes, host actions, and explicit leaves.
type WSHandler struct {
	service  *app.LobbyService
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(service *app.LobbyService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// ServeWS upgrades the request and wires the connection into the lobby.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	token := r.URL.Query().Get("token")
	if sessionID == "" || userID == "" {
		http.Error(w, "missing sessionId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	lobby, err := h.service.Lobby(sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	if err := lobby.Join(r.Context(), userID, token); err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	updates, unsubscribe := lobby.Subscribe()
	defer unsubscribe()

	poller := lobby.StartPoller(r.Context(), userID)
	defer lobby.StopPoller(userID)
	defer func() { _ = lobby.Leave(r.Context(), userID) }()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[app.Snapshot]{Type: "snapshot", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// reply never blocks past a dead writer.
	reply := func(msg any) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			poller.Refresh()
		case "start":
			if err := lobby.Start(userID); err != nil {
				reply(errorMessage(err))
			}
		case "cancel":
			if err := lobby.CancelSession(userID); err != nil {
				reply(errorMessage(err))
			}
		case "leave":
			if err := lobby.Leave(r.Context(), userID); err != nil {
				reply(errorMessage(err))
			}
		default:
			reply(errorText("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// RegisterRoutes mounts the REST side of the lobby API next to the websocket.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/sessions/", h.serveREST)
}

// serveREST handles GET /sessions/{id}/participants, GET /sessions/{id}/leaderboard,
// and POST /sessions/{id}/complete for collaborators that do not hold a socket.
func (h *WSHandler) serveREST(w http.ResponseWriter, r *http.Request) {
	sessionID, op, ok := splitSessionPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case op == "participants" && r.Method == http.MethodGet:
		view, err := h.service.Refresh(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, view)
	case op == "leaderboard" && r.Method == http.MethodGet:
		lb, err := h.service.Leaderboard(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, lb)
	case op == "complete" && r.Method == http.MethodPost:
		if err := h.service.Complete(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func splitSessionPath(path string) (sessionID, op string, ok bool) {
	const prefix = "/sessions/"
	rest := path[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], rest[:i] != "" && rest[i+1:] != ""
		}
	}
	return "", "", false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	}
	http.Error(w, err.Error(), status)
}

func errorMessage(err error) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{
		Message: err.Error(),
		Kind:    string(domain.Classify(err)),
	}}
}

func errorText(msg string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}
}
