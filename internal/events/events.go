// Package events publishes machine lifecycle events.
//
// Events are fire-and-forget notifications for other systems watching a run;
// nothing in the tool reads them back. Publishing failures are logged and
// never fail an operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/internal/logging"
)

// DefaultSubjectPrefix is prepended to the event type to form the subject.
const DefaultSubjectPrefix = "linode.events"

// Event types.
const (
	TypeLoaded         = "loaded"
	TypeShutdown       = "shutdown"
	TypeBoot           = "boot"
	TypeDisksDeleted   = "disks.deleted"
	TypeDiskCreated    = "disk.created"
	TypeConfigsDeleted = "configs.deleted"
	TypeConfigCreated  = "config.created"
	TypeFailed         = "failed"
)

// Event is the JSON payload published for one lifecycle step.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	LinodeID  int       `json:"linode_id"`
	Label     string    `json:"label"`
	Step      string    `json:"step,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Memory keeps events in memory, in publish order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the published events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types returns the type of every published event.
func (m *Memory) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher publishes events as JSON on core NATS subjects of the form
// {prefix}.{type}.
type NATSPublisher struct {
	nc     conn
	prefix string
	log    logrus.FieldLogger
}

// Connect dials a NATS server.
func Connect(url, clientName string, log logrus.FieldLogger) (*NATSPublisher, error) {
	log = logging.OrDiscard(log)
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithField("err", err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return newNATSPublisher(nc, DefaultSubjectPrefix, log), nil
}

func newNATSPublisher(nc conn, prefix string, log logrus.FieldLogger) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix, log: logging.OrDiscard(log)}
}

// Subject returns the subject an event of the given type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(e.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.WithField("err", err).Warn("failed to drain nats connection")
	}
	p.nc.Close()
}

// Emit publishes e and logs, rather than returns, any failure. A nil
// publisher is a no-op.
func Emit(ctx context.Context, pub Publisher, log logrus.FieldLogger, e Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logging.OrDiscard(log).WithFields(logrus.Fields{
			"event": e.Type,
			"err":   err,
		}).Warn("failed to publish event")
	}
}
