// Package proxy provides the chat proxy behind the BPMN assistant. It keeps
// provider credentials server side, streams the upstream chat completion back
// to the client verbatim and records every session it serves.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/diagram"
	"github.com/papercomputeco/bpmnchat/pkg/llm"
	"github.com/papercomputeco/bpmnchat/pkg/payload"
	"github.com/papercomputeco/bpmnchat/pkg/prompt"
	"github.com/papercomputeco/bpmnchat/pkg/session"
	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/proxy/header"
	"github.com/papercomputeco/bpmnchat/proxy/worker"
)

// ProcessPath is the route accepting chat prompts.
const ProcessPath = "/api/process"

const (
	errInvalidModel    = "Invalid model selected"
	errPromptRequired  = "prompt is required"
	errInvalidBody     = "invalid request body"
	errStreamingAPI    = "Streaming API error"
	defaultTemperature = 0.0
)

// Proxy forwards prompts to the configured upstream providers and enqueues
// the finished sessions for async storage via its worker pool.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	classifier    *payload.SentinelClassifier
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of sessions.
// Returns an error if no provider routes are configured.
func New(cfg Config, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("at least one provider route is required")
	}

	if cfg.Prompts == nil {
		loader, err := prompt.NewLoader("", logger)
		if err != nil {
			return nil, fmt.Errorf("could not load default prompt: %w", err)
		}
		cfg.Prompts = loader
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: cfg.Publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Reasoning models can think for minutes before the first token
			Timeout: 5 * time.Minute,
		}
	}

	var classifierOpts []payload.Option
	if len(cfg.RootElements) > 0 {
		classifierOpts = append(classifierOpts, payload.WithRootElements(cfg.RootElements...))
	}

	p := &Proxy{
		config:        cfg,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		httpClient:    httpClient,
		classifier:    payload.NewSentinelClassifier(classifierOpts...),
		headerHandler: header.NewHandler(header.WithGetenv(cfg.Getenv)),
	}

	app.Post(ProcessPath, p.handleProcess)

	if cfg.PublicDir != "" {
		app.Get("/*", adaptor.HTTPHandler(http.FileServer(http.Dir(cfg.PublicDir))))
	}

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"routes", p.routeNames(),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"routes", p.routeNames(),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the server and drains the worker pool.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// handleProcess validates a prompt request, opens a streaming request to the
// selected upstream and pipes the reply to the client.
func (p *Proxy) handleProcess(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ProcessRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		p.logger.Debug("rejecting malformed request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errInvalidBody})
	}

	routeName := req.Model
	if routeName == "" {
		routeName = p.config.DefaultModel
	}
	route, ok := p.config.Providers[routeName]
	if !ok {
		p.logger.Debug("rejecting unknown model", "model", req.Model)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errInvalidModel})
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: errPromptRequired})
	}

	model := route.ModelFor(req.Reasoner)
	body, err := json.Marshal(llm.NewStreamingRequest(model, p.config.Prompts.Prompt(), req.Prompt, temperatureFor(route, model)))
	if err != nil {
		p.logger.Error("failed to encode upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming callback runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, route.Upstream, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(httpReq, route.APIKeyEnv)

	p.logger.Debug("forwarding streaming request to upstream",
		"route", routeName,
		"model", model,
		"url", route.Upstream,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "route", routeName, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error:   errStreamingAPI,
			Details: err.Error(),
		})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			"route", routeName,
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		p.headerHandler.SetClientErrorHeaders(c, httpResp)
		return c.Status(httpResp.StatusCode).Send(respBody)
	}

	p.headerHandler.SetClientStreamHeaders(c)

	rec := &storage.Record{
		ID:        uuid.NewString(),
		Provider:  routeName,
		Model:     model,
		Reasoner:  req.Reasoner,
		Prompt:    req.Prompt,
		StartedAt: startTime,
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter uses an internal PipeConns with a buffered channel
	// (capacity 4) and two bufio.Writers, which means Flush() in the callback
	// only pushes data into the pipe, NOT to the TCP socket. This causes all
	// chunks to buffer in memory before being sent to the client.
	//
	// With io.Pipe, pw.Write blocks until the reader consumes the data, and
	// the reader is fasthttp's writeBodyChunked which flushes to TCP after
	// every chunk. This gives direct backpressure and true per-chunk streaming.
	pr, pw := io.Pipe()
	go p.handleHTTPRespToPipeWriter(httpResp, pw, rec)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleHTTPRespToPipeWriter forwards the upstream body verbatim to the pipe
// writer while a session assembles the reply for the session record.
func (p *Proxy) handleHTTPRespToPipeWriter(httpResp *http.Response, pw *io.PipeWriter, rec *storage.Record) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()

	reader := sse.NewReader(io.TeeReader(httpResp.Body, pw),
		sse.WithLogger(p.logger),
		sse.WithMaxRequeues(p.config.MaxRequeues),
	)

	s := session.New(
		session.WithID(rec.ID),
		session.WithClassifier(p.classifier),
		session.WithRenderer(session.RendererFunc(validateDiagram)),
		session.WithLogger(p.logger.With("session", rec.ID)),
	)

	res, err := session.Run(context.Background(), s, reader.Deltas())
	if err != nil {
		p.logger.Error("session run failed", "session", rec.ID, "error", err)
		pw.CloseWithError(err)
		return
	}

	// Anything after the done sentinel still belongs to the client.
	var streamErr error
	if res.Outcome != session.StateFailed {
		if _, err := io.Copy(pw, httpResp.Body); err != nil {
			streamErr = err
		}
	} else {
		streamErr = res.Err
	}
	rec.Text = res.Text
	rec.Reasoning = res.Classified.Reasoning
	rec.Diagram = res.Diagram
	rec.Outcome = res.Outcome.String()
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	rec.Stats = reader.Stats()
	rec.FinishedAt = time.Now()

	p.logger.Debug("streaming complete",
		"session", rec.ID,
		"outcome", rec.Outcome,
		"chunks", res.Chunks,
		"duration", rec.FinishedAt.Sub(rec.StartedAt),
	)

	// Enqueue before closing the pipe: the client response, and with it
	// server shutdown, only completes once the pipe is closed.
	p.workerPool.Enqueue(worker.Job{
		Record: rec,
		Path:   ProcessPath,
		Status: http.StatusOK,
	})
	pw.CloseWithError(streamErr)
}

// routeNames lists the configured model routes in sorted order.
func (p *Proxy) routeNames() []string {
	names := make([]string, 0, len(p.config.Providers))
	for name := range p.config.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// temperatureFor pins the temperature to zero unless the model rejects it.
func temperatureFor(route config.ProviderConfig, model string) *float64 {
	if slices.Contains(route.NoTemperatureModels, model) {
		return nil
	}
	t := defaultTemperature
	return &t
}

func validateDiagram(ctx context.Context, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return diagram.Validate(doc)
}
