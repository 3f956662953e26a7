package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WSHandler streams broadcaster messages to websocket clients. Each client
// presents a subscription token as a query parameter; the channel list in
// the token's claims scopes what the client receives.
type WSHandler struct {
	broadcaster *Broadcaster
	issuer      *TokenIssuer
	upgrader    websocket.Upgrader
	log         *logrus.Logger
}

// NewWSHandler creates a websocket handler backed by the given broadcaster.
func NewWSHandler(b *Broadcaster, issuer *TokenIssuer, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		broadcaster: b,
		issuer:      issuer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and forwards messages until the client
// disconnects or the broadcaster closes.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	claims, err := h.issuer.Verify(tokenString)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	var sub <-chan Message
	if len(claims.Channels) == 0 {
		sub = h.broadcaster.Subscribe()
	} else {
		sub = h.broadcaster.SubscribeChannels(claims.Channels...)
	}
	defer h.broadcaster.Unsubscribe(sub)
	defer conn.Close()

	// Drain reads so the close handshake works; clients don't send data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("websocket write failed, dropping client")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
