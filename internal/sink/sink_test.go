package sink

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/hub"
	"Go2NetSentinel/internal/model"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSSink_Send(t *testing.T) {
	conn := &fakeConn{}
	s := &NATSSink{conn: conn, subject: "ns.events.scored"}
	assert.Equal(t, "nats:ns.events.scored", s.ID())

	require.NoError(t, s.Send([]byte(`{"kind":"flow"}`)))
	assert.Equal(t, []string{"ns.events.scored"}, conn.subjects)
	assert.JSONEq(t, `{"kind":"flow"}`, string(conn.payloads[0]))
	assert.NoError(t, s.Close(), "no connection to drain")
}

func TestNATSSink_EvictedOnFailure(t *testing.T) {
	h := hub.New()
	s := &NATSSink{conn: &fakeConn{err: errors.New("nats: connection closed")}, subject: "x"}
	h.Register(s)

	h.Publish(model.NewScoredEvent(1, model.EventInfo{}, 0.9, model.PredictionAnomaly))
	assert.Equal(t, 0, h.Len())
}

func TestKafkaSink_Send(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"prediction":"normal"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := newKafkaSink(producer, "ns-events-scored")
	assert.Equal(t, "kafka:ns-events-scored", s.ID())
	require.NoError(t, s.Send([]byte(`{"prediction":"normal"}`)))
	assert.ErrorIs(t, s.Send([]byte(`{}`)), sarama.ErrOutOfBrokers)
	require.NoError(t, s.Close())
}

func TestNewSinks(t *testing.T) {
	sinks, err := NewSinks(config.SinksConfig{})
	require.NoError(t, err)
	assert.Empty(t, sinks)

	_, err = NewSinks(config.SinksConfig{Kafka: config.KafkaSinkConfig{Enabled: true}})
	assert.Error(t, err, "no brokers")
}
