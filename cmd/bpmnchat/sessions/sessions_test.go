package sessionscmder_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bpmnchat/api"
	sessionscmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/sessions"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/pkg/storage/inmemory"
)

const orderDiagram = `<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_Order">` +
	`<bpmn:process id="Process_Order"><bpmn:startEvent id="Order_Received"/></bpmn:process></bpmn:definitions>`

var _ = Describe("Sessions command", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
		server  *api.Server
		target  string
	)

	run := func(args ...string) error {
		cmd := sessionscmder.NewSessionsCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--api-target", target))
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".bpmnchat"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		driver := inmemory.NewDriver()
		ctx := context.Background()
		Expect(driver.Put(ctx, &storage.Record{
			ID:         "sess-rendered",
			Provider:   "deepseek",
			Model:      "deepseek-reasoner",
			Reasoner:   true,
			Prompt:     "Orders get shipped",
			Text:       "Here is the order process.\n" + orderDiagram,
			Diagram:    orderDiagram,
			Outcome:    "rendered",
			Stats:      sse.Stats{Deltas: 12, Requeued: 1},
			StartedAt:  started,
			FinishedAt: started.Add(4 * time.Second),
		})).To(Succeed())
		Expect(driver.Put(ctx, &storage.Record{
			ID:         "sess-empty",
			Provider:   "chatgpt",
			Model:      "gpt-4o",
			Prompt:     "Hello",
			Text:       "Please describe a process.",
			Outcome:    "no_payload",
			StartedAt:  started.Add(time.Minute),
			FinishedAt: started.Add(time.Minute + time.Second),
		})).To(Succeed())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		target = "http://" + listener.Addr().String()

		server = api.NewServer(api.Config{ListenAddr: listener.Addr().String()}, driver, logger.Nop())
		go func() {
			defer GinkgoRecover()
			_ = server.RunWithListener(listener)
		}()
	})

	AfterEach(func() {
		Expect(server.Shutdown()).To(Succeed())
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	It("has list, show, diagram and stats subcommands", func() {
		cmd := sessionscmder.NewSessionsCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("list", "show", "diagram", "stats"))
	})

	It("lists sessions", func() {
		Expect(run("list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Sessions (2)"))
		Expect(out.String()).To(ContainSubstring("sess-rendered"))
		Expect(out.String()).To(ContainSubstring("deepseek/deepseek-reasoner (reasoner)"))
		Expect(out.String()).To(ContainSubstring("sess-empty"))
		Expect(out.String()).To(ContainSubstring("Orders get shipped"))
	})

	It("filters sessions by outcome", func() {
		Expect(run("list", "--outcome", "no_payload")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Sessions (1)"))
		Expect(out.String()).NotTo(ContainSubstring("sess-rendered"))
	})

	It("rejects an unknown outcome", func() {
		err := run("list", "--outcome", "exploded")
		Expect(err).To(MatchError(ContainSubstring("HTTP 400")))
	})

	It("shows a session", func() {
		Expect(run("show", "sess-rendered")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Orders get shipped"))
		Expect(out.String()).To(ContainSubstring("12 (1 requeued, 0 discarded)"))
		Expect(out.String()).To(ContainSubstring("Here is the order process."))
	})

	It("reports a missing session", func() {
		err := run("show", "nope")
		Expect(err).To(MatchError(ContainSubstring("session not found")))
	})

	It("writes a session diagram to a file", func() {
		path := filepath.Join(tmpDir, "order.bpmn")
		Expect(run("diagram", "sess-rendered", "-o", path)).To(Succeed())

		doc, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(doc)).To(ContainSubstring(`id="Order_Received"`))
	})

	It("reports a session without a diagram", func() {
		err := run("diagram", "sess-empty")
		Expect(err).To(MatchError(ContainSubstring("session has no diagram")))
	})

	It("prints outcome counts", func() {
		Expect(run("stats")).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`Total:.*2`))
		Expect(out.String()).To(MatchRegexp(`rendered:.*1`))
	})
})
