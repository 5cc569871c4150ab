package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/catena/pkg/log"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix is prepended to the event type to form the NATS subject
const SubjectPrefix = "catena.events."

// conn is the part of *nats.Conn the forwarder uses
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	IsConnected() bool
}

// NATSForwarder publishes every broker event to NATS as JSON
type NATSForwarder struct {
	broker *Broker
	nc     conn
	sub    Subscriber
	done   chan struct{}
	logger zerolog.Logger
}

// ConnectNATS dials url with reconnects enabled
func ConnectNATS(url string) (*nats.Conn, error) {
	logger := log.WithComponent("events")
	nc, err := nats.Connect(url,
		nats.Name("catena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSForwarder subscribes to broker and forwards to nc until Stop
func NewNATSForwarder(broker *Broker, nc *nats.Conn) *NATSForwarder {
	return newNATSForwarder(broker, nc)
}

func newNATSForwarder(broker *Broker, nc conn) *NATSForwarder {
	f := &NATSForwarder{
		broker: broker,
		nc:     nc,
		sub:    broker.Subscribe(),
		done:   make(chan struct{}),
		logger: log.WithComponent("events"),
	}
	go f.run()
	return f
}

func (f *NATSForwarder) run() {
	defer close(f.done)
	for event := range f.sub {
		data, err := json.Marshal(event)
		if err != nil {
			f.logger.Error().Err(err).Str("event_id", event.ID).Msg("Failed to encode event")
			continue
		}
		if err := f.nc.Publish(SubjectPrefix+string(event.Type), data); err != nil {
			f.logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to forward event")
		}
	}
}

// Healthy reports whether the NATS connection is up
func (f *NATSForwarder) Healthy() error {
	if !f.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

// Stop unsubscribes from the broker, waits for queued events and drains the
// connection
func (f *NATSForwarder) Stop() error {
	f.broker.Unsubscribe(f.sub)
	<-f.done
	return f.nc.Drain()
}
