package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/pkg/logger"
)

// decodeLines parses newline-separated JSON records.
func decodeLines(raw string) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("New", func() {
	It("writes Info text records by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Info("proxy started", "listen", ":3000")
		l.Debug("hidden")

		Expect(buf.String()).To(ContainSubstring("proxy started"))
		Expect(buf.String()).To(ContainSubstring("listen=:3000"))
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
	})

	DescribeTable("levels",
		func(opt logger.Option, debugShown, infoShown bool) {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), opt)
			l.Debug("debug record")
			l.Info("info record")

			Expect(strings.Contains(buf.String(), "debug record")).To(Equal(debugShown))
			Expect(strings.Contains(buf.String(), "info record")).To(Equal(infoShown))
		},
		Entry("debug on", logger.WithDebug(true), true, true),
		Entry("debug off", logger.WithDebug(false), false, true),
		Entry("warn level", logger.WithLevel(slog.LevelWarn), false, false),
	)

	It("encodes JSON records with attributes and groups", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.WithGroup("stream").Info("session stored", "deltas", 12)

		records := decodeLines(buf.String())
		Expect(records).To(HaveLen(1))
		Expect(records[0]["msg"]).To(Equal("session stored"))
		Expect(records[0]["stream"]).To(HaveKeyWithValue("deltas", BeNumerically("==", 12)))
	})

	It("prefers JSON over pretty output", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		l.Info("structured")

		Expect(decodeLines(buf.String())).To(HaveLen(1))
	})

	It("renders pretty records", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		l.Warn("render failed", "session", "abc")

		Expect(buf.String()).To(ContainSubstring("render failed"))
		Expect(buf.String()).To(ContainSubstring("abc"))
	})

	It("copies records to every writer", func() {
		var a, b bytes.Buffer
		logger.New(logger.WithWriters(&a, &b)).Info("both")

		Expect(a.String()).To(ContainSubstring("both"))
		Expect(b.String()).To(ContainSubstring("both"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(h.Enabled(context.Background(), level)).To(BeFalse())
		}
	})

	It("accepts derived loggers", func() {
		Expect(func() {
			logger.Nop().With("k", "v").WithGroup("g").Error("ignored")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("emits a record when any logger accepts its level", func() {
		var info, debug bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)
		l.Debug("chunk received")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("chunk received"))
	})

	It("carries attributes and groups to every logger", func() {
		var a, b bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
		)
		l.With("session", "s1").WithGroup("upstream").Info("done", "status", 200)

		for _, buf := range []*bytes.Buffer{&a, &b} {
			records := decodeLines(buf.String())
			Expect(records).To(HaveLen(1))
			Expect(records[0]["session"]).To(Equal("s1"))
			Expect(records[0]["upstream"]).To(HaveKeyWithValue("status", BeNumerically("==", 200)))
		}
	})

	It("keeps writing after one handler fails", func() {
		var ok bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(failingWriter{})),
			logger.New(logger.WithWriter(&ok)),
		)
		l.Info("still here")

		Expect(ok.String()).To(ContainSubstring("still here"))
	})

	It("skips nil loggers", func() {
		var buf bytes.Buffer
		logger.Multi(nil, logger.New(logger.WithWriter(&buf))).Info("once")
		Expect(strings.Count(buf.String(), "once")).To(Equal(1))
	})
})

var _ = Describe("ForCommand", func() {
	It("logs to the terminal only without a log file", func() {
		var term bytes.Buffer
		l, closeLog, err := logger.ForCommand(&term, false, "")
		Expect(err).NotTo(HaveOccurred())
		defer closeLog()

		l.Info("serving")
		Expect(term.String()).To(ContainSubstring("serving"))
	})

	It("appends JSON debug records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "logs", "bpmnchat.log")
		var term bytes.Buffer

		l, closeLog, err := logger.ForCommand(&term, false, path)
		Expect(err).NotTo(HaveOccurred())
		l.Debug("requeued line", "attempt", 1)
		l.Info("session stored")
		Expect(closeLog()).To(Succeed())

		Expect(term.String()).NotTo(ContainSubstring("requeued line"))
		Expect(term.String()).To(ContainSubstring("session stored"))

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		records := decodeLines(string(raw))
		Expect(records).To(HaveLen(2))
		Expect(records[0]["msg"]).To(Equal("requeued line"))
		Expect(records[1]["msg"]).To(Equal("session stored"))
	})

	It("fails when the log file cannot be opened", func() {
		dir := GinkgoT().TempDir()
		_, _, err := logger.ForCommand(&bytes.Buffer{}, false, dir)
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
