package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/utils"
)

var _ = DescribeTable("Truncate",
	func(in string, maxLen int, want string) {
		Expect(utils.Truncate(in, maxLen)).To(Equal(want))
	},
	Entry("shorter than the limit", "order", 10, "order"),
	Entry("exactly at the limit", "12345", 5, "12345"),
	Entry("longer than the limit", "data: {\"choices\":[]}", 6, "data: ..."),
	Entry("multi-byte runes are kept whole", "Prüfung läuft", 3, "Prü..."),
	Entry("zero limit", "abc", 0, "..."),
	Entry("empty input", "", 4, ""),
)

var _ = Describe("OneLine", func() {
	It("collapses newlines and repeated spaces", func() {
		Expect(utils.OneLine("  Receive order\n\n  then\tship it ")).To(Equal("Receive order then ship it"))
	})
})

var _ = Describe("UserAgent", func() {
	It("carries the build version", func() {
		Expect(utils.UserAgent()).To(Equal("bpmnchat/" + utils.Version))
	})
})
