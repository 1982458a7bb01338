package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	p.exchange = exchange
	p.key = key
	p.msg = msg
	return p.err
}

func TestNewRefreshMsg(t *testing.T) {
	a, err := NewRefreshMsg("v1", "watch")
	require.NoError(t, err)
	b, err := NewRefreshMsg("v1", "watch")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "v1", a.Version)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
}

func TestPublishRefresh(t *testing.T) {
	msg := RefreshMsg{ID: "id1", Version: "v2", Reason: "manual", Timestamp: time.Unix(100, 0).UTC()}
	p := &recordingPublisher{}

	require.NoError(t, PublishRefresh(context.Background(), p, msg))
	assert.Equal(t, RefreshExchange, p.exchange)
	assert.Equal(t, RefreshRoutingKey, p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, "id1", p.msg.MessageId)

	got, err := DecodeRefresh(p.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestPublishRefresh_Error(t *testing.T) {
	p := &recordingPublisher{err: errors.New("closed")}
	err := PublishRefresh(context.Background(), p, RefreshMsg{ID: "x"})
	assert.ErrorContains(t, err, "closed")
}

func TestDecodeRefresh(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"id":"a","version":"v","reason":"watch","timestamp":"2024-01-01T00:00:00Z"}`, false},
		{"not json", `refresh`, true},
		{"missing id", `{"version":"v"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRefresh([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandleDeliveries(t *testing.T) {
	good, err := json.Marshal(RefreshMsg{ID: "a", Version: "v1"})
	require.NoError(t, err)

	msgs := make(chan amqp091.Delivery, 3)
	msgs <- amqp091.Delivery{Body: []byte("garbage")}
	msgs <- amqp091.Delivery{Body: good}
	close(msgs)

	var got []RefreshMsg
	HandleDeliveries(context.Background(), msgs, func(m RefreshMsg) {
		got = append(got, m)
	})
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].Version)
}

func TestHandleDeliveries_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		HandleDeliveries(ctx, make(chan amqp091.Delivery), func(RefreshMsg) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestEnabled(t *testing.T) {
	t.Setenv("RABBITMQ_HOST", "")
	assert.False(t, Enabled())
	t.Setenv("RABBITMQ_HOST", "localhost")
	assert.True(t, Enabled())
}
