package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/metabolic-ninja/api-go/internal/dispatch"
	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// closeMessage is the text frame a client sends to end the session.
const closeMessage = "close"

type wsError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// handleWS answers every job key a client sends with the current status of
// that job until the client sends "close" or goes away.
func (s Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin(s.CORSOrigins, origin) != ""
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Error(err, "Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.Logger.Error(err, "Websocket closed with error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if string(data) == closeMessage {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		var key model.JobKey
		if err := json.Unmarshal(data, &key); err != nil {
			if err := conn.WriteJSON(wsError{Error: http.StatusBadRequest, Message: "Invalid job key"}); err != nil {
				return
			}
			continue
		}

		var reply any
		status, err := s.Jobs.Status(ctx, key)
		switch {
		case errors.Is(err, dispatch.ErrInvalidKey):
			reply = wsError{Error: http.StatusNotFound, Message: "No such key"}
		case err != nil:
			s.Logger.Error(err, "Job status failed", "productId", key.ProductID)
			reply = wsError{Error: http.StatusInternalServerError, Message: err.Error()}
		default:
			reply = status
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
