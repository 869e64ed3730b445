package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// envelope is the wire form of an event relayed between instances.
type envelope struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
	Event  Event  `json:"event"`
}

// natsConn is the subset of *nats.Conn the relay needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATSRelay fans events out across instances. Publish delivers locally and
// forwards an envelope on the NATS subject; envelopes from other instances
// are re-published into the local hub. An instance never re-delivers its own
// envelopes, so each client sees each event once.
type NATSRelay struct {
	local   Publisher
	conn    natsConn
	subject string
	origin  string
	sub     *nats.Subscription
}

// NewNATSRelay subscribes to subject and returns a relay wrapping local.
func NewNATSRelay(local Publisher, conn natsConn, subject string) (*NATSRelay, error) {
	r := &NATSRelay{
		local:   local,
		conn:    conn,
		subject: subject,
		origin:  uuid.NewString(),
	}
	sub, err := conn.Subscribe(subject, r.onMessage)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %q: %w", subject, err)
	}
	r.sub = sub
	return r, nil
}

// Origin is this instance's relay id.
func (r *NATSRelay) Origin() string { return r.origin }

// Publish delivers ev locally, then forwards it to peers. Forwarding
// failures are logged; local delivery has already happened.
func (r *NATSRelay) Publish(topic string, ev Event) {
	r.local.Publish(topic, ev)

	b, err := json.Marshal(envelope{Origin: r.origin, Topic: topic, Event: ev})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("relay encode")
		return
	}
	if err := r.conn.Publish(r.subject, b); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("relay publish")
	}
}

func (r *NATSRelay) onMessage(m *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		log.Warn().Err(err).Msg("relay decode")
		return
	}
	if env.Origin == r.origin || env.Topic == "" {
		return
	}
	r.local.Publish(env.Topic, env.Event)
}

// Close stops receiving remote events.
func (r *NATSRelay) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}

// ConnectNATS dials url with reconnects enabled and connection events logged.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}

var _ Publisher = (*NATSRelay)(nil)
