package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

var _ = Describe("Event", func() {
	var rec *storage.Record

	BeforeEach(func() {
		start := time.Unix(1735689600, 0).UTC()
		rec = &storage.Record{
			ID:         "sess-1",
			Provider:   "chatgpt",
			Model:      "gpt-4o",
			Reasoning:  "because",
			Diagram:    "<bpmn:definitions/>",
			Outcome:    "rendered",
			Stats:      sse.Stats{Deltas: 7},
			StartedAt:  start,
			FinishedAt: start.Add(2 * time.Second),
		}
	})

	It("builds an event from a record", func() {
		now := time.Unix(1735689700, 0)
		ev := eventstream.NewSessionFinalizedEvent(rec, "/api/process", 200, now)

		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal(eventstream.EventTypeSessionFinalized))
		Expect(ev.EventID).NotTo(BeEmpty())
		Expect(ev.EmittedAt).To(Equal(now.UTC()))
		Expect(ev.Source).To(Equal(eventstream.EventSource{Provider: "chatgpt", Model: "gpt-4o"}))
		Expect(ev.RequestMeta.DurationMs).To(Equal(int64(2000)))
		Expect(ev.RequestMeta.HTTPStatus).To(Equal(200))
		Expect(ev.Session.ID).To(Equal("sess-1"))
		Expect(ev.Session.ReasoningBytes).To(Equal(len("because")))
		Expect(ev.Session.DiagramBytes).To(Equal(len("<bpmn:definitions/>")))
		Expect(ev.Session.Stream.Deltas).To(Equal(7))
	})

	It("marshals with expected top-level keys", func() {
		payload, err := json.Marshal(eventstream.NewSessionFinalizedEvent(rec, "", 200, time.Now()))
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("request_meta"))
		Expect(got).To(HaveKey("session"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeSessionFinalized).To(Equal("bpmnchat.session.finalized"))
		Expect(eventstream.ErrNilSessionEvent).To(MatchError("nil session event"))
	})
})
