package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEntitlementChanged(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, TopicEntitlementChanged, logger.Nop())

	e := domain.NewEntitlement("u1", "")
	e = domain.Grant(domain.TierBasic, "cus_1", "sub_1").Apply(e, time.Now().UTC())
	ev := domain.NewEntitlementChanged(domain.ChangeSourceCheckout, "evt_1", e)

	require.NoError(t, p.PublishEntitlementChanged(context.Background(), ev))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, TopicEntitlementChanged, msg.Topic)
	assert.Equal(t, "u1", string(msg.Key))

	var got domain.EntitlementChanged
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, domain.ChangeSourceCheckout, got.Source)
	assert.Equal(t, []domain.Region{domain.RegionUS}, got.Regions)
	assert.Equal(t, "evt_1", got.ProviderEventID)
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, "custom", logger.Nop())

	err := p.PublishEntitlementChanged(context.Background(), domain.NewEntitlementChanged(domain.ChangeSourceOverride, "", domain.NewEntitlement("u1", "")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(nil, "", logger.Nop())
	assert.Error(t, err)
}

func TestEnsureTopicRejectsBadAddress(t *testing.T) {
	assert.Error(t, EnsureTopic(context.Background(), []string{"kafka"}, TopicEntitlementChanged, 3, logger.Nop()))
	assert.Error(t, EnsureTopic(context.Background(), nil, TopicEntitlementChanged, 3, logger.Nop()))
}
