// Package storagetest holds the behaviour every storage.Driver must share.
package storagetest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

// NewRecord builds a record started at minute offset from a fixed time.
func NewRecord(id string, minute int, outcome string) *storage.Record {
	start := time.Date(2025, 3, 1, 9, minute, 0, 0, time.UTC)
	return &storage.Record{
		ID:         id,
		Provider:   "deepseek",
		Model:      "deepseek-chat",
		Prompt:     "order to cash",
		Text:       "reasoning\n<bpmn:definitions></bpmn:definitions>",
		Reasoning:  "reasoning",
		Diagram:    "<bpmn:definitions></bpmn:definitions>",
		Outcome:    outcome,
		Stats:      sse.Stats{Chunks: 3, Lines: 5, Events: 4, Deltas: 4},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec; the driver is closed afterwards.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("round-trips a record", func() {
			rec := NewRecord("a", 0, "rendered")
			Expect(driver.Put(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Provider).To(Equal(rec.Provider))
			Expect(got.Text).To(Equal(rec.Text))
			Expect(got.Diagram).To(Equal(rec.Diagram))
			Expect(got.Stats).To(Equal(rec.Stats))
			Expect(got.StartedAt.Equal(rec.StartedAt)).To(BeTrue())
			Expect(got.FinishedAt.Equal(rec.FinishedAt)).To(BeTrue())
		})

		It("replaces a record with the same ID", func() {
			Expect(driver.Put(ctx, NewRecord("a", 0, "rendered"))).To(Succeed())
			updated := NewRecord("a", 0, "failed")
			updated.Error = "reset"
			Expect(driver.Put(ctx, updated)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Outcome).To(Equal("failed"))
			Expect(got.Error).To(Equal("reset"))
		})

		It("returns NotFoundError for unknown IDs", func() {
			_, err := driver.Get(ctx, "missing")
			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.ID).To(Equal("missing"))
		})

		It("rejects nil records", func() {
			Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilRecord))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(driver.Put(ctx, NewRecord("old", 1, "rendered"))).To(Succeed())
			Expect(driver.Put(ctx, NewRecord("new", 3, "no_payload"))).To(Succeed())
			Expect(driver.Put(ctx, NewRecord("mid", 2, "rendered"))).To(Succeed())
		})

		ids := func(recs []*storage.Record) []string {
			out := make([]string, 0, len(recs))
			for _, r := range recs {
				out = append(out, r.ID)
			}
			return out
		}

		It("lists newest first", func() {
			recs, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"new", "mid", "old"}))
		})

		It("applies a limit", func() {
			recs, err := driver.List(ctx, storage.ListOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"new", "mid"}))
		})

		It("filters by outcome", func() {
			recs, err := driver.List(ctx, storage.ListOptions{Outcome: "rendered"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"mid", "old"}))
		})
	})
}
