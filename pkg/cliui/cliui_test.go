package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/payload"
	"github.com/papercomputeco/bpmnchat/pkg/session"
)

var _ = Describe("FormatReplyTime", func() {
	DescribeTable("formats whole seconds",
		func(d time.Duration, want string) {
			Expect(cliui.FormatReplyTime(d)).To(Equal(want))
		},
		Entry("under a second", 900*time.Millisecond, "Replied in 0 seconds"),
		Entry("seconds only", 42*time.Second, "Replied in 42 seconds"),
		Entry("exact minute", time.Minute, "Replied in 1 min 0 sec"),
		Entry("minutes and seconds", 65*time.Second+500*time.Millisecond, "Replied in 1 min 5 sec"),
		Entry("negative", -time.Second, "Replied in 0 seconds"),
	)
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds above a second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("reports success", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "saving", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark + " saving"))
	})

	It("returns the error and marks the failure", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "saving", func() error { return errors.New("disk full") })
		Expect(err).To(MatchError("disk full"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark + " saving"))
	})

	It("writes a single line without spinner frames off a terminal", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "saving", func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})).To(Succeed())
		Expect(buf.String()).NotTo(ContainSubstring("\r"))
		Expect(strings.Count(buf.String(), "\n")).To(Equal(1))
	})
})

var _ = Describe("IsTerminal", func() {
	It("is false for buffers", func() {
		Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
	})
})

var _ = Describe("ReplyMarkdown", func() {
	c := payload.Classified{Reasoning: "two lanes\nthree tasks", StructuredPayload: "<bpmn:definitions/>"}

	It("fences the payload as XML in reasoner mode", func() {
		md := cliui.ReplyMarkdown(c, true)
		Expect(md).To(HavePrefix("**" + cliui.ReasoningTitle + "**"))
		Expect(md).To(ContainSubstring("> two lanes\n> three tasks\n"))
		Expect(md).To(HaveSuffix("```xml\n<bpmn:definitions/>\n```\n"))
	})

	It("shows the whole reply otherwise", func() {
		Expect(cliui.ReplyMarkdown(c, false)).To(Equal("two lanes\nthree tasks\n\n<bpmn:definitions/>"))
	})

	It("omits the reasoning block when there is none", func() {
		md := cliui.ReplyMarkdown(payload.Classified{StructuredPayload: "<x/>"}, true)
		Expect(md).To(Equal("```xml\n<x/>\n```\n"))
	})
})

var _ = Describe("RenderNotice", func() {
	DescribeTable("prefixes the level icon",
		func(level session.NoticeLevel, mark string) {
			Expect(cliui.RenderNotice(session.Notice{Level: level, Message: "m"})).To(Equal("  " + mark + " m"))
		},
		Entry("success", session.NoticeSuccess, cliui.SuccessMark),
		Entry("warning", session.NoticeWarning, cliui.WarnMark),
		Entry("error", session.NoticeError, cliui.FailMark),
		Entry("info", session.NoticeInfo, cliui.InfoMark),
	)
})

var _ = Describe("Terminal", func() {
	var (
		buf   bytes.Buffer
		clock time.Time
	)

	BeforeEach(func() {
		buf.Reset()
		clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	now := func() time.Time { return clock }
	plainMarkdown := func(s string) (string, error) { return "MD[" + s + "]\n", nil }

	It("writes the raw reply and timing in plain mode", func() {
		t := cliui.NewTerminal(&buf, cliui.WithTerminalClock(now), cliui.WithMarkdownRenderer(plainMarkdown))
		t.Pending()
		t.Streaming()
		t.Append("Hello ")
		t.Append("world")
		clock = clock.Add(3 * time.Second)
		t.Final(payload.Classified{Reasoning: "Hello world"})
		t.Notify(session.Notice{Level: session.NoticeWarning, Message: session.MessageNoPayload})

		out := buf.String()
		Expect(out).To(ContainSubstring("Hello world\n"))
		Expect(out).NotTo(ContainSubstring("MD["))
		Expect(out).NotTo(ContainSubstring("System is typing"))
		Expect(out).To(ContainSubstring("Replied in 3 seconds"))
		Expect(out).To(ContainSubstring(session.MessageNoPayload))
	})

	It("draws and clears the indicator and re-renders in styled mode", func() {
		t := cliui.NewTerminal(&buf,
			cliui.WithStyled(true),
			cliui.WithReasoner(true),
			cliui.WithTerminalClock(now),
			cliui.WithMarkdownRenderer(plainMarkdown),
		)
		t.Pending()
		Expect(buf.String()).To(ContainSubstring("System is typing"))

		t.Streaming()
		Expect(buf.String()).To(ContainSubstring("\r\033[K"))
		Expect(buf.String()).To(ContainSubstring(cliui.ReasoningTitle))

		t.Append("<bpmn:definitions/>")
		t.Final(payload.Classified{StructuredPayload: "<bpmn:definitions/>"})
		Expect(buf.String()).To(ContainSubstring("MD[```xml\n<bpmn:definitions/>\n```\n]"))
	})

	It("clears the indicator on abort", func() {
		t := cliui.NewTerminal(&buf, cliui.WithStyled(true))
		t.Pending()
		t.Abort(errors.New("refused"))
		Expect(strings.HasSuffix(buf.String(), "\r\033[K")).To(BeTrue())
	})
})
