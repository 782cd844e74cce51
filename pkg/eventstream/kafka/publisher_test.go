package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
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

var _ = Describe("Publisher", func() {
	var (
		writer *fakeWriter
		pub    *Publisher
		event  *eventstream.SessionFinalizedEvent
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		pub = newPublisher(writer, "sessions", nil)
		event = eventstream.NewSessionFinalizedEvent(&storage.Record{
			ID:      "sess-9",
			Outcome: "rendered",
		}, "/api/process", 200, time.Now())
	})

	It("validates its configuration", func() {
		_, err := NewPublisher(Config{Topic: "t"})
		Expect(err).To(HaveOccurred())

		_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())

		p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(pub.PublishSession(context.Background(), nil)).To(MatchError(eventstream.ErrNilSessionEvent))
	})

	It("writes a JSON message keyed by session", func() {
		Expect(pub.PublishSession(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("sess-9"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeSessionFinalized)}))

		var got eventstream.SessionFinalizedEvent
		Expect(json.Unmarshal(msg.Value, &got)).To(Succeed())
		Expect(got.Session.Outcome).To(Equal("rendered"))
		Expect(got.EventID).To(Equal(event.EventID))
	})

	It("wraps writer errors", func() {
		writer.err = errors.New("leader not available")
		err := pub.PublishSession(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("publishing to sessions")))
		Expect(errors.Is(err, writer.err)).To(BeTrue())
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
