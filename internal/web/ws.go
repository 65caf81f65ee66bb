package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The page is served from this process; other origins are not expected
	// but are allowed the same access as POST /chat.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleChatWS answers each {message} text frame with a ChatResponse or
// ErrorResponse frame. Turns on one socket run one at a time.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket chat connected")

	ctx := r.Context()
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req ChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			if err := conn.WriteJSON(ErrorResponse{Error: errNoMessage}); err != nil {
				return
			}
			continue
		}

		resp, code := s.turn(ctx, "websocket", req.Message)
		var out any = resp
		if code != http.StatusOK {
			out = ErrorResponse{Error: resp.Response}
		}
		if err := conn.WriteJSON(out); err != nil {
			s.logger.Warn().Err(err).Msg("WebSocket write error")
			return
		}
	}
}
