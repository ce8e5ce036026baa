package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gorilla/websocket"
)

const (
	eventsPingInterval = 45 * time.Second
	eventsReadTimeout  = 90 * time.Second
	eventsWriteTimeout = 10 * time.Second
)

var eventsUpgrader = websocket.Upgrader{
	CheckOrigin: allowedOrigin,
}

// allowedOrigin accepts same-origin clients and the configured frontends.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || config.Cfg == nil {
		return true
	}
	for _, allowed := range config.Cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// HandleSessionEvents upgrades to a websocket and streams the caller's session
// changes as JSON messages. The stream ends after SIGNED_OUT.
func (h *UserHandler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	log := logger.FromContext(r.Context())

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.events.Subscribe(userID)
	defer cancel()
	done := make(chan struct{})

	// writer
	go func() {
		defer conn.Close()
		ping := time.NewTicker(eventsPingInterval)
		defer ping.Stop()
		for {
			select {
			case ev, open := <-events:
				if !open {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
				if ev.Type == services.EventSignedOut {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
						time.Now().Add(eventsWriteTimeout))
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	log.Debug("Session event stream opened")
	// reader: clients send nothing meaningful; reading keeps pongs flowing.
	_ = conn.SetReadDeadline(time.Now().Add(eventsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	log.Debug("Session event stream closed")
}
