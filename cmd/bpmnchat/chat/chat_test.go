package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	chatcmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/chat"
	"github.com/papercomputeco/bpmnchat/pkg/llm"
	"github.com/papercomputeco/bpmnchat/pkg/utils"
)

const orderDiagram = `<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_Order">` +
	`<bpmn:process id="Process_Order"><bpmn:startEvent id="Order_Received"/><bpmn:task id="Ship_Order"/>` +
	`<bpmn:sequenceFlow id="Flow_1" sourceRef="Order_Received" targetRef="Ship_Order"/></bpmn:process>` +
	`</bpmn:definitions>`

// fakeProxy answers /api/process with an SSE stream of the given chunks and
// records every request body it receives.
type fakeProxy struct {
	mu       sync.Mutex
	requests []llm.ProcessRequest
	chunks   []string
	status   int
	agents   []string
}

func (f *fakeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req llm.ProcessRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.agents = append(f.agents, r.UserAgent())
	f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "Invalid model selected"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, chunk := range f.chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": chunk}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (f *fakeProxy) received() []llm.ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ProcessRequest(nil), f.requests...)
}

var _ = Describe("NewChatCmd", func() {
	It("registers the client flags", func() {
		cmd := chatcmder.NewChatCmd()
		for _, name := range []string{"proxy-target", "model", "reasoner", "out", "file", "log-file"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("model").Shorthand).To(Equal("m"))
		Expect(cmd.Flags().Lookup("reasoner").Shorthand).To(Equal("r"))
	})
})

var _ = Describe("Chat command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
		fake    *fakeProxy
		server  *httptest.Server
		outPath string
	)

	run := func(stdin string, args ...string) error {
		cmd := chatcmder.NewChatCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetArgs(append([]string{"--proxy-target", server.URL, "--out", outPath}, args...))
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		outPath = filepath.Join(tmpDir, "diagrams", "order.bpmn")

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".bpmnchat"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		fake = &fakeProxy{}
		server = httptest.NewServer(fake)
	})

	AfterEach(func() {
		server.Close()
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	Context("with a prompt argument", func() {
		It("streams the reply and saves the imported diagram", func() {
			fake.chunks = []string{"Here is the order process.\n", orderDiagram[:40], orderDiagram[40:]}

			Expect(run("", "--model", "deepseek", "Orders", "get", "shipped")).To(Succeed())

			Expect(fake.received()).To(ConsistOf(llm.ProcessRequest{
				Prompt: "Orders get shipped",
				Model:  "deepseek",
			}))
			Expect(out.String()).To(ContainSubstring("Here is the order process."))
			Expect(out.String()).To(ContainSubstring("Replied in"))
			Expect(fake.agents).To(ConsistOf("bpmnchat/" + utils.Version))

			saved, err := os.ReadFile(outPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(saved)).To(ContainSubstring(`id="Ship_Order"`))
		})

		It("appends debug records to the log file", func() {
			fake.chunks = []string{"Here is the order process.\n", orderDiagram}
			logPath := filepath.Join(tmpDir, "logs", "chat.log")

			Expect(run("", "--log-file", logPath, "Orders")).To(Succeed())

			raw, err := os.ReadFile(logPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"level":"DEBUG"`))
		})

		It("does not save when the reply has no diagram", func() {
			fake.chunks = []string{"Could you describe the process in more detail?"}

			Expect(run("", "Something")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("more detail"))
			_, err := os.Stat(outPath)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("sends the reasoner toggle", func() {
			fake.chunks = []string{"Thinking.", orderDiagram}

			Expect(run("", "-r", "Orders")).To(Succeed())

			reqs := fake.received()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Reasoner).To(BeTrue())
		})

		It("reports the proxy error message", func() {
			fake.status = http.StatusBadRequest

			err := run("", "--model", "nope", "Orders")
			Expect(err).To(MatchError(ContainSubstring("Invalid model selected")))
		})
	})

	Context("with --file", func() {
		It("sends the file contents as the prompt", func() {
			fake.chunks = []string{orderDiagram}
			promptFile := filepath.Join(tmpDir, "requirements.txt")
			Expect(os.WriteFile(promptFile, []byte("Receive order\nShip order\n"), 0o644)).To(Succeed())

			Expect(run("", "--file", promptFile)).To(Succeed())

			reqs := fake.received()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Prompt).To(Equal("Receive order\nShip order\n"))
			Expect(outPath).To(BeAnExistingFile())
		})

		It("fails when the file is missing", func() {
			err := run("", "--file", filepath.Join(tmpDir, "missing.txt"))
			Expect(err).To(MatchError(ContainSubstring("reading prompt file")))
		})
	})

	Context("interactively", func() {
		It("applies slash commands to later prompts", func() {
			fake.chunks = []string{orderDiagram}

			Expect(run("/reasoner\n/model chatgpt\nDraw the order process\n/exit\nnever sent\n")).To(Succeed())

			reqs := fake.received()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0]).To(Equal(llm.ProcessRequest{
				Prompt:   "Draw the order process",
				Model:    "chatgpt",
				Reasoner: true,
			}))
			Expect(out.String()).To(ContainSubstring("Reasoner On"))
			Expect(outPath).To(BeAnExistingFile())
		})

		It("keeps going after a failed prompt", func() {
			fake.status = http.StatusBadRequest

			Expect(run("first\nsecond\n")).To(Succeed())

			Expect(fake.received()).To(HaveLen(2))
			Expect(out.String()).To(ContainSubstring("Invalid model selected"))
		})

		It("reports unknown commands", func() {
			Expect(run("/bogus\n")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`unknown command "/bogus"`))
			Expect(fake.received()).To(BeEmpty())
		})

		It("prints the current diagram", func() {
			Expect(run("/diagram\n")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("bpmn:definitions"))
		})

		It("continues from a saved diagram", func() {
			Expect(os.MkdirAll(filepath.Dir(outPath), 0o755)).To(Succeed())
			Expect(os.WriteFile(outPath, []byte(orderDiagram), 0o644)).To(Succeed())

			Expect(run("/diagram\n")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Ship_Order"))
		})
	})
})
