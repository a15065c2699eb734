package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	closed   bool
	failNext error
	sent     []amqp.Publishing
	keys     []string
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.closed {
		return amqp.ErrClosed
	}
	if err := c.failNext; err != nil {
		c.failNext = nil
		c.closed = true
		return err
	}
	c.keys = append(c.keys, key)
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// dialer hands out fresh channels and counts the dials.
type dialer struct {
	chans []*fakeChannel
	conns []*fakeConn
	err   error
}

func (d *dialer) dial() (channel, io.Closer, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	ch, conn := &fakeChannel{}, &fakeConn{}
	d.chans = append(d.chans, ch)
	d.conns = append(d.conns, conn)
	return ch, conn, nil
}

func newTestPublisher(t *testing.T, d *dialer) *Publisher {
	t.Helper()
	p := &Publisher{dial: d.dial}
	p.mu.Lock()
	require.NoError(t, p.connectLocked())
	p.mu.Unlock()
	return p
}

func TestPublisherReusesOpenChannel(t *testing.T) {
	d := &dialer{}
	p := newTestPublisher(t, d)

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventCodeAssigned, QRCodeID: "c1"}))
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventLocationPushed, QRCodeID: "c1"}))

	require.Len(t, d.chans, 1)
	assert.Equal(t, []string{EventCodeAssigned, EventLocationPushed}, d.chans[0].keys)
	msg := d.chans[0].sent[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	var ev Event
	require.NoError(t, json.Unmarshal(msg.Body, &ev))
	assert.Equal(t, "c1", ev.QRCodeID)
}

func TestPublisherRedialsClosedChannel(t *testing.T) {
	d := &dialer{}
	p := newTestPublisher(t, d)

	// broker restart
	d.chans[0].closed = true

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventCodeAssigned}))
	require.Len(t, d.chans, 2)
	assert.True(t, d.conns[0].closed)
	assert.Equal(t, []string{EventCodeAssigned}, d.chans[1].keys)
}

func TestPublisherRetriesOnceAfterErrClosed(t *testing.T) {
	d := &dialer{}
	p := newTestPublisher(t, d)
	d.chans[0].failNext = amqp.ErrClosed

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventCodeDeleted}))
	require.Len(t, d.chans, 2)
	assert.Empty(t, d.chans[0].keys)
	assert.Equal(t, []string{EventCodeDeleted}, d.chans[1].keys)
}

func TestPublisherReportsDialFailure(t *testing.T) {
	d := &dialer{}
	p := newTestPublisher(t, d)
	d.chans[0].closed = true
	d.err = errors.New("connection refused")

	err := p.Publish(context.Background(), Event{Type: EventCodeAssigned})
	assert.EqualError(t, err, "connection refused")

	// the broker came back
	d.err = nil
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventCodeAssigned}))
	assert.Len(t, d.chans, 2)
}

func TestPublisherClose(t *testing.T) {
	d := &dialer{}
	p := newTestPublisher(t, d)
	require.NoError(t, p.Close())
	assert.True(t, d.chans[0].closed)
	assert.True(t, d.conns[0].closed)
}
