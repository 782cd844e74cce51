// Package chatcmder provides the chat command for generating BPMN diagrams
// through the bpmnchat proxy.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/diagram"
	"github.com/papercomputeco/bpmnchat/pkg/llm"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/payload"
	"github.com/papercomputeco/bpmnchat/pkg/session"
	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/utils"
	"github.com/papercomputeco/bpmnchat/proxy"
)

type chatCommander struct {
	proxyTarget string
	model       string
	reasoner    bool
	diagramOut  string
	file        string
	logFile     string
	debug       bool

	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
	classifier payload.Classifier
	canvas     *diagram.Canvas

	in     io.Reader
	out    io.Writer
	styled bool
}

var chatFlagKeys = []string{
	config.FlagProxyTarget,
	config.FlagModel,
	config.FlagReasoner,
	config.FlagDiagramOut,
	config.FlagLogFile,
}

const chatLongDesc string = `Describe a process and get a BPMN diagram back.

The chat command sends prompts to the bpmnchat proxy, streams the reply to the
terminal and imports the BPMN XML it contains into the current diagram. Each
successfully imported diagram is saved to the --out file.

With a prompt argument or --file the command sends one prompt and exits.
Without either it starts an interactive session:
  /reasoner         Toggle the reasoning model of the route
  /model <name>     Switch the model route
  /diagram          Print the current diagram
  /save             Save the current diagram
  /exit             Quit (Ctrl+D also works)

Examples:
  bpmnchat chat "An order is received, checked and shipped"
  bpmnchat chat --model deepseek --reasoner --file requirements.txt
  bpmnchat chat --out order.bpmn`

const chatShortDesc string = "Generate BPMN diagrams from prompts"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlagKeys)

			cmder.cfg, err = config.Resolve(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.proxyTarget = cmder.cfg.Client.ProxyTarget
			cmder.model = cmder.cfg.Client.Model
			cmder.reasoner = cmder.cfg.Client.Reasoner
			cmder.diagramOut = cmder.cfg.Client.DiagramOut
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Persistent on the root command; absent when run standalone.
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.styled = cliui.IsTerminal(cmder.out)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyTarget, &cmder.proxyTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddBoolFlag(cmd, config.Flags, config.FlagReasoner, &cmder.reasoner)
	config.AddStringFlag(cmd, config.Flags, config.FlagDiagramOut, &cmder.diagramOut)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Text file whose contents are sent as the prompt")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, argPrompt string) error {
	log, closeLog, err := logger.ForCommand(os.Stderr, c.debug, c.cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	c.httpClient = &http.Client{
		// Reasoning models can think for minutes before the first token
		Timeout: 10 * time.Minute,
	}

	var classifierOpts []payload.Option
	if roots := c.cfg.Payload.RootElements; len(roots) > 0 {
		classifierOpts = append(classifierOpts, payload.WithRootElements(roots...))
	}
	c.classifier = payload.NewSentinelClassifier(classifierOpts...)
	c.canvas = diagram.NewCanvas(
		diagram.WithInitial(c.initialDiagram()),
		diagram.WithCanvasLogger(c.logger),
	)

	if c.file != "" {
		text, err := os.ReadFile(c.file)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		argPrompt = string(text)
	}

	if strings.TrimSpace(argPrompt) != "" {
		res, err := c.send(ctx, argPrompt)
		if err != nil {
			return err
		}
		if res.Outcome == session.StateFailed {
			return res.Err
		}
		return nil
	}

	return c.interactive(ctx)
}

// initialDiagram loads the output file when it holds a valid diagram so a
// session continues where the last one stopped.
func (c *chatCommander) initialDiagram() string {
	if c.diagramOut == "" {
		return diagram.Default()
	}

	doc, err := os.ReadFile(c.diagramOut)
	if err != nil {
		return diagram.Default()
	}
	if err := diagram.Validate(string(doc)); err != nil {
		c.logger.Warn("ignoring invalid diagram file", "path", c.diagramOut, "error", err)
		return diagram.Default()
	}
	return string(doc)
}

func (c *chatCommander) interactive(ctx context.Context) error {
	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.model))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Reasoner:"), cliui.NameStyle.Render(onOff(c.reasoner)))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Diagram:"), cliui.NameStyle.Render(c.diagramOut))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Describe a process and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, cliui.HeaderStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(input)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
			}
			if quit {
				break
			}
			continue
		}

		if _, err := c.send(ctx, input); err != nil {
			fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		}
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// command runs a slash command and reports whether to quit.
func (c *chatCommander) command(input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil
	case "/reasoner":
		c.reasoner = !c.reasoner
		fmt.Fprintf(c.out, "  %s Reasoner %s\n", cliui.InfoMark, onOff(c.reasoner))
	case "/model":
		if arg == "" {
			return false, errors.New("usage: /model <name>")
		}
		c.model = arg
		fmt.Fprintf(c.out, "  %s Model %s\n", cliui.InfoMark, cliui.NameStyle.Render(c.model))
	case "/diagram":
		fmt.Fprint(c.out, c.canvas.Export())
	case "/save":
		return false, c.save()
	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
	return false, nil
}

// send runs one session for prompt and saves the diagram when it renders.
func (c *chatCommander) send(ctx context.Context, prompt string) (*session.Result, error) {
	display := cliui.NewTerminal(c.out,
		cliui.WithStyled(c.styled),
		cliui.WithReasoner(c.reasoner),
	)

	s := session.New(
		session.WithDisplay(display),
		session.WithRenderer(c.canvas),
		session.WithClassifier(c.classifier),
		session.WithLogger(c.logger),
	)

	res, err := session.Run(ctx, s, c.stream(ctx, prompt))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("session finished",
		"session", res.ID,
		"outcome", res.Outcome.String(),
		"chunks", res.Chunks,
		"elapsed", res.Elapsed(),
	)

	if res.Outcome == session.StateRendered {
		if err := c.save(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *chatCommander) save() error {
	if c.diagramOut == "" {
		return errors.New("no diagram output file configured")
	}
	return cliui.Step(c.out, "Saving diagram to "+c.diagramOut, func() error {
		return c.canvas.Save(c.diagramOut)
	})
}

// stream posts prompt to the proxy when iterated and yields the reply's
// deltas. Request failures surface as the first yielded error.
func (c *chatCommander) stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.post(ctx, prompt)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		reader := sse.NewReader(resp.Body,
			sse.WithLogger(c.logger),
			sse.WithMaxRequeues(c.cfg.Stream.MaxRequeues),
		)
		for delta, err := range reader.Deltas() {
			if !yield(delta, err) {
				return
			}
		}

		c.logger.Debug("stream complete", "stats", reader.Stats())
	}
}

func (c *chatCommander) post(ctx context.Context, prompt string) (*http.Response, error) {
	body, err := json.Marshal(llm.ProcessRequest{
		Prompt:   prompt,
		Model:    c.model,
		Reasoner: c.reasoner,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending prompt",
		"proxy_target", c.proxyTarget,
		"model", c.model,
		"reasoner", c.reasoner,
	)

	url := strings.TrimSuffix(c.proxyTarget, "/") + proxy.ProcessPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		var e llm.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("proxy returned status %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("proxy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp, nil
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
