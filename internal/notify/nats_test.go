package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/notify"
	"scala40-server/internal/scala40"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	sent []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{subject, data})
	return nil
}

func TestGameSubject(t *testing.T) {
	assert.Equal(t, "scala40.games.abc.events", notify.GameSubject("abc"))
}

func TestPublish(t *testing.T) {
	assert := assert.New(t)
	conn := &fakeConn{}
	logger, _ := test.NewNullLogger()
	p := notify.NewPublisher(conn, logrus.NewEntry(logger))

	events := []scala40.Event{
		scala40.Discarded{GameID: "g1", PlayerID: "bob", Card: "Kc0"},
		scala40.Closed{GameID: "g1", PlayerID: "bob", Smazzata: 1},
	}
	require.NoError(t, p.Publish(context.Background(), "g1", events))
	require.Len(t, conn.sent, 2)

	m, err := notify.Decode(conn.sent[0].subject, conn.sent[0].data)
	require.NoError(t, err)
	assert.Equal("g1", m.GameID)
	assert.Equal(scala40.EventDiscard, m.Event)
	assert.Contains(string(m.Data), `"card":"Kc0"`)

	m, err = notify.Decode(conn.sent[1].subject, conn.sent[1].data)
	require.NoError(t, err)
	assert.Equal(scala40.EventClosure, m.Event)
}

func TestPublishFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := notify.NewPublisher(conn, logrus.NewEntry(logger))

	err := p.Publish(context.Background(), "g1", []scala40.Event{scala40.GameEnded{GameID: "g1"}})
	assert.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestPublishAfterCancel(t *testing.T) {
	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notify.NewPublisher(conn, nil).Publish(ctx, "g1", []scala40.Event{scala40.GameEnded{GameID: "g1"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.sent)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := notify.Decode(notify.GameSubject("g1"), []byte("not json"))
	assert.Error(t, err)
}
