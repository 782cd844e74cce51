package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/llm"
)

var _ = Describe("NewStreamingRequest", func() {
	It("places the system prompt before the user prompt", func() {
		req := llm.NewStreamingRequest("gpt-4o", "be terse", "draw a process", nil)

		Expect(req.Stream).To(BeTrue())
		Expect(req.Messages).To(Equal([]llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "draw a process"},
		}))
	})

	It("omits temperature when nil", func() {
		b, err := json.Marshal(llm.NewStreamingRequest("o3", "s", "u", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).NotTo(ContainSubstring("temperature"))
	})

	It("keeps a zero temperature", func() {
		zero := 0.0
		b, err := json.Marshal(llm.NewStreamingRequest("gpt-4o", "s", "u", &zero))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring(`"temperature":0`))
	})
})
