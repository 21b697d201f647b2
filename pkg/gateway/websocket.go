package gateway

import (
	"net/http"

	"github.com/ZentaChain/zentalk-gateway/pkg/transport"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketPath is where browser clients connect.
const WebSocketPath = "/apiws"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	Subprotocols:    []string{"binary"},
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketHandler returns a router serving MTProto over WebSocket binary
// messages at WebSocketPath.
func (s *Server) WebSocketHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(WebSocketPath, s.serveWebSocket).Methods(http.MethodGet)
	return r
}

func (s *Server) serveWebSocket(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.String("remote", req.RemoteAddr), zap.Error(err))
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.ServeConn(transport.NewWebSocketStream(ws), req.RemoteAddr)
}
