package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func recordedMessage(offset int64, headers ...kafka.Header) kafka.Message {
	return kafka.Message{
		Topic:     "learning_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		Key:       []byte("S1"),
		Value:     []byte(`{"record_id":"r1","student_id":"S1","score":80}`),
		Headers:   headers,
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := recordedMessage(10,
		kafka.Header{Key: "event_type", Value: []byte("activity.recorded")},
		kafka.Header{Key: "student_id", Value: []byte("S1")},
	)
	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.recorded", handler.last.EventType)
	require.Equal(t, "S1", handler.last.StudentID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, string(msg.Value), string(handler.last.Payload))
}

func TestProcessorFallsBackToKeyForStudent(t *testing.T) {
	msg := recordedMessage(11, kafka.Header{Key: "event_type", Value: []byte("activity.recorded")})
	msg.Key = []byte("S7")
	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "S7", handler.last.StudentID)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "learning_events",
		Offset: 20,
		Value:  []byte(`{"student_id":"S2","records_removed":3}`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("student.deleted")},
			{Key: "student_id", Value: []byte("S2")},
		},
	}
	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	missingHeader := recordedMessage(30)
	unknownType := recordedMessage(31, kafka.Header{Key: "event_type", Value: []byte("activity.exploded")})
	badJSON := recordedMessage(32, kafka.Header{Key: "event_type", Value: []byte("student.added")})
	badJSON.Value = []byte(`{"student_id":`)

	for _, msg := range []*kafka.Message{&missingHeader, &unknownType, &badJSON} {
		msg.Topic = "learning_events_malformed"
	}
	decodeErrors := func(eventType string) float64 {
		return testutil.ToFloat64(decodeErrorCounter.WithLabelValues("learning_events_malformed", eventType))
	}
	missing, exploded, added := decodeErrors(missingEventType), decodeErrors("activity.exploded"), decodeErrors("student.added")

	reader := &stubReader{messages: []kafka.Message{missingHeader, unknownType, badJSON}, after: contextCanceled}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.Equal(t, missing+1, decodeErrors(missingEventType))
	require.Equal(t, exploded+1, decodeErrors("activity.exploded"))
	require.Equal(t, added+1, decodeErrors("student.added"))
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
