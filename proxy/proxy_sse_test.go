package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/pkg/storage/inmemory"
)

const validDiagram = `<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="d1">` +
	`<bpmn:process id="p1"><bpmn:startEvent id="s1"/></bpmn:process></bpmn:definitions>`

// contentEvent renders one chat completion chunk carrying content.
func contentEvent(field, text string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{%q:%q}}]}\n\n", field, text)
}

// streamingUpstream writes each event with a flush so the proxy sees them as
// separate reads.
func streamingUpstream(events ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, event := range events {
			fmt.Fprint(w, event)
			flusher.Flush()
		}
	}))
}

var _ = Describe("Streaming", func() {
	var (
		p        *Proxy
		driver   *inmemory.Driver
		upstream *httptest.Server
	)

	AfterEach(func() {
		if p != nil {
			p.Close()
		}
		if upstream != nil {
			upstream.Close()
		}
	})

	// stream posts a prompt and returns the full client body.
	stream := func(body string) (*http.Response, string) {
		resp, err := p.server.Test(processRequest(body), -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, string(b)
	}

	// stored drains the worker pool and returns the single stored record.
	stored := func() *storage.Record {
		p.Close()
		p = nil

		recs, err := driver.List(GinkgoT().Context(), storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		return recs[0]
	}

	Context("when upstream replies with a diagram", func() {
		events := []string{
			contentEvent("content", "Here is the process.\n"),
			contentEvent("content", validDiagram[:40]),
			contentEvent("content", validDiagram[40:]),
			"data: [DONE]\n\n",
		}

		BeforeEach(func() {
			upstream = streamingUpstream(events...)
			p, driver = newTestProxy(upstream.URL)
		})

		It("passes the upstream stream through verbatim as plain text", func() {
			resp, body := stream(`{"prompt":"order to cash","model":"chatgpt"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))

			want := ""
			for _, e := range events {
				want += e
			}
			Expect(body).To(Equal(want))
		})

		It("stores a rendered session record", func() {
			stream(`{"prompt":"order to cash","model":"chatgpt"}`)

			rec := stored()
			Expect(rec.ID).NotTo(BeEmpty())
			Expect(rec.Provider).To(Equal("chatgpt"))
			Expect(rec.Model).To(Equal("gpt-4o"))
			Expect(rec.Prompt).To(Equal("order to cash"))
			Expect(rec.Outcome).To(Equal("rendered"))
			Expect(rec.Reasoning).To(Equal("Here is the process."))
			Expect(rec.Diagram).To(Equal(validDiagram))
			Expect(rec.Stats.Deltas).To(Equal(3))
			Expect(rec.FinishedAt).NotTo(BeTemporally("<", rec.StartedAt))
		})
	})

	Context("when upstream streams reasoning content", func() {
		BeforeEach(func() {
			upstream = streamingUpstream(
				contentEvent("reasoning_content", "thinking about lanes"),
				contentEvent("content", validDiagram),
				"data: [DONE]\n\n",
			)
			p, driver = newTestProxy(upstream.URL)
		})

		It("assembles reasoning and content in arrival order", func() {
			stream(`{"prompt":"order to cash","model":"deepseek","reasoner":true}`)

			rec := stored()
			Expect(rec.Model).To(Equal("deepseek-reasoner"))
			Expect(rec.Reasoner).To(BeTrue())
			Expect(rec.Text).To(Equal("thinking about lanes" + validDiagram))
			Expect(rec.Outcome).To(Equal("rendered"))
		})
	})

	Context("when a data line is split across reads", func() {
		BeforeEach(func() {
			line := contentEvent("content", "Hello")
			upstream = streamingUpstream(line[:20], line[20:], "data: [DONE]\n\n")
			p, driver = newTestProxy(upstream.URL)
		})

		It("reassembles the delta", func() {
			stream(`{"prompt":"hi","model":"chatgpt"}`)

			rec := stored()
			Expect(rec.Text).To(Equal("Hello"))
			Expect(rec.Outcome).To(Equal("no_payload"))
		})
	})

	Context("when the reply holds an invalid diagram", func() {
		BeforeEach(func() {
			upstream = streamingUpstream(
				contentEvent("content", `<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"></bpmn:definitions>`),
				"data: [DONE]\n\n",
			)
			p, driver = newTestProxy(upstream.URL)
		})

		It("records a render failure", func() {
			stream(`{"prompt":"hi","model":"chatgpt"}`)

			rec := stored()
			Expect(rec.Outcome).To(Equal("render_failed"))
			Expect(rec.Error).NotTo(BeEmpty())
		})
	})

	Context("when the stream ends without the done sentinel", func() {
		BeforeEach(func() {
			upstream = streamingUpstream(contentEvent("content", "partial"))
			p, driver = newTestProxy(upstream.URL)
		})

		It("still finalizes the session", func() {
			_, body := stream(`{"prompt":"hi","model":"chatgpt"}`)
			Expect(body).To(ContainSubstring("partial"))

			rec := stored()
			Expect(rec.Text).To(Equal("partial"))
			Expect(rec.Outcome).To(Equal("no_payload"))
		})
	})
})
