// Package notify fans game events out over NATS so other services can follow
// a table without holding a websocket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/scala40"
)

const (
	SubjectPrefix = "scala40.games."
	SubjectSuffix = ".events"

	// SubjectAllEvents matches the events of every game.
	SubjectAllEvents = SubjectPrefix + "*" + SubjectSuffix
)

func GameSubject(gameID string) string {
	return SubjectPrefix + gameID + SubjectSuffix
}

// Conn is the slice of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements scala40.EventSink.
type Publisher struct {
	conn Conn
	log  *logrus.Entry
}

func NewPublisher(conn Conn, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{conn: conn, log: log.WithField("component", "notify")}
}

// Connect dials url with reconnect handling that logs through log.
func Connect(url string, log *logrus.Entry) (*nats.Conn, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	opts := []nats.Option{
		nats.Name("scala40-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(10 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("reconnected to NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Publish sends each event as its own message, in order, and stops at the
// first failure.
func (p *Publisher) Publish(ctx context.Context, gameID string, events []scala40.Event) error {
	subject := GameSubject(gameID)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := scala40.MarshalEvent(ev)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
		}
		if err := p.conn.Publish(subject, data); err != nil {
			p.log.WithFields(logrus.Fields{"gameId": gameID, "event": ev.Kind()}).WithError(err).Error("failed to publish event")
			return err
		}
		p.log.WithFields(logrus.Fields{"subject": subject, "event": ev.Kind()}).Debug("published event")
	}
	return nil
}

// Message is one received event with its payload left raw.
type Message struct {
	GameID string            `json:"gameId"`
	Event  scala40.EventKind `json:"event"`
	Data   json.RawMessage   `json:"data"`
}

// Decode parses a published event. The game id comes from the subject.
func Decode(subject string, data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode event on %s: %w", subject, err)
	}
	if len(subject) > len(SubjectPrefix)+len(SubjectSuffix) {
		m.GameID = subject[len(SubjectPrefix) : len(subject)-len(SubjectSuffix)]
	}
	return m, nil
}

// Watch streams decoded events for subject until ctx is done.
func Watch(ctx context.Context, nc *nats.Conn, subject string, fn func(Message)) error {
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		m, err := Decode(msg.Subject, msg.Data)
		if err != nil {
			return
		}
		fn(m)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}
