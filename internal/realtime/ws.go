package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GatewayOptions tunes websocket connections.
type GatewayOptions struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string // empty or "*" allows any origin
}

func (o GatewayOptions) withDefaults() GatewayOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 4 << 10
	}
	return o
}

// clientFrame is what browsers send: subscribe or unsubscribe requests.
type clientFrame struct {
	Action         string `json:"action"`
	ConversationID uint   `json:"conversation_id"`
}

// ackData confirms a join or leave.
type ackData struct {
	Action         string `json:"action"`
	ConversationID uint   `json:"conversation_id"`
	Topic          string `json:"topic"`
}

// Gateway upgrades HTTP requests to websocket subscribers on a Hub.
type Gateway struct {
	hub      *Hub
	opts     GatewayOptions
	upgrader websocket.Upgrader
}

// NewGateway returns a Gateway bound to hub.
func NewGateway(hub *Hub, opts GatewayOptions) *Gateway {
	opts = opts.withDefaults()
	g := &Gateway{hub: hub, opts: opts}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range g.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the connection, joins it to the dashboard and pumps
// events until either side closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}

	sub := g.hub.Subscribe(DashboardTopic)
	l := log.With().Str("remote", r.RemoteAddr).Logger()
	l.Debug().Msg("ws connected")

	go g.writePump(conn, sub, l)
	g.readPump(conn, sub, l)
}

// readPump handles join/leave frames. It owns the lifetime of sub: when the
// client goes away the subscriber is removed, which closes its queue and ends
// writePump.
func (g *Gateway) readPump(conn *websocket.Conn, sub *Subscriber, l zerolog.Logger) {
	defer func() {
		g.hub.Remove(sub)
		l.Debug().Int64("dropped", sub.Dropped()).Msg("ws disconnected")
	}()

	conn.SetReadLimit(g.opts.MaxFrameBytes)
	pongWait := g.opts.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Debug().Err(err).Msg("ws read")
			}
			return
		}
		g.handleFrame(sub, data, l)
	}
}

func (g *Gateway) handleFrame(sub *Subscriber, data []byte, l zerolog.Logger) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil || f.ConversationID == 0 {
		l.Warn().Err(err).Int("bytes", len(data)).Msg("ws malformed frame ignored")
		return
	}
	topic := ConversationTopic(f.ConversationID)
	switch strings.ToLower(strings.TrimSpace(f.Action)) {
	case "join":
		g.hub.Join(sub, topic)
	case "leave":
		g.hub.Leave(sub, topic)
	default:
		l.Warn().Str("action", f.Action).Msg("ws unknown action ignored")
		return
	}
	g.hub.Deliver(sub, Event{
		Type:  TypeAck,
		Topic: topic,
		Data:  ackData{Action: strings.ToLower(f.Action), ConversationID: f.ConversationID, Topic: topic},
	})
}

// writePump drains the subscriber queue onto the socket and sends pings.
func (g *Gateway) writePump(conn *websocket.Conn, sub *Subscriber, l zerolog.Logger) {
	ticker := time.NewTicker(g.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(g.opts.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				l.Debug().Err(err).Msg("ws write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(g.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
