package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	commitErr error
	i         int
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_DecodesAndCommits(t *testing.T) {
	published := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fr := &fakeReader{
		msgs: []kafka.Message{{
			Key:   []byte("MSCU1234567"),
			Value: []byte(`{"load_id":7,"tracking_number":"NSL-MFX2K9QZ-7Q1Z","created":true,"event_count":3}`),
			Time:  published,
		}},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr, "load.synced.decode")
	c.now = func() time.Time { return published.Add(2 * time.Second) }

	var got []messages.LoadSynced
	err := c.ConsumeLoadSynced(context.Background(), func(_ context.Context, m messages.LoadSynced) error {
		got = append(got, m)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Len(t, got, 1)
	require.Equal(t, uint64(7), got[0].LoadID)
	require.Equal(t, "NSL-MFX2K9QZ-7Q1Z", got[0].TrackingNumber)
	require.True(t, got[0].Created)
	require.Len(t, fr.committed, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BrokerMessagesConsumed.WithLabelValues("load.synced.decode", "ok")))
}

func TestConsumer_MalformedCommittedAndSkipped(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Value: []byte("{broken")},
			{Value: []byte(`{"load_id":2}`)},
		},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr, "load.synced.malformed")

	var ids []uint64
	_ = c.ConsumeLoadSynced(context.Background(), func(_ context.Context, m messages.LoadSynced) error {
		ids = append(ids, m.LoadID)
		return nil
	})
	require.Equal(t, []uint64{2}, ids)
	require.Len(t, fr.committed, 2)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BrokerMessagesConsumed.WithLabelValues("load.synced.malformed", "malformed")))
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte(`{"load_id":9}`)}}}
	c := newConsumerWithReader(fr, "load.synced.handler")

	want := errors.New("redis down")
	err := c.ConsumeLoadSynced(context.Background(), func(context.Context, messages.LoadSynced) error { return want })
	require.ErrorIs(t, err, want)
	require.Contains(t, err.Error(), "handle load 9")
	require.Empty(t, fr.committed)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BrokerMessagesConsumed.WithLabelValues("load.synced.handler", "error")))
}

func TestConsumer_CommitErrorCounted(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte(`{"load_id":1}`)}}, commitErr: errors.New("rebalance")}
	c := newConsumerWithReader(fr, "load.synced.commit")

	err := c.ConsumeLoadSynced(context.Background(), func(context.Context, messages.LoadSynced) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit message")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BrokerCommitErrors.WithLabelValues("load.synced.commit")))
}

func TestNewConsumer_DefaultTopicAndClose(t *testing.T) {
	c := newConsumerWithReader(&fakeReader{}, "")
	require.Equal(t, messages.TopicLoadSynced, c.topic)

	kc := NewConsumer([]string{"localhost:0"}, "load.synced", "track-api")
	require.NotNil(t, kc)
	require.NoError(t, kc.Close())
}
