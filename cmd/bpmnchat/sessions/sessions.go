// Package sessionscmder provides the sessions command for browsing stored
// chat sessions through the bpmnchat API server.
package sessionscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/api"
	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/llm"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/pkg/utils"
)

type sessionsCommander struct {
	apiTarget string
	client    *Client
}

var sessionsFlagKeys = []string{
	config.FlagAPITarget,
}

const sessionsLongDesc string = `Browse chat sessions recorded by the bpmnchat proxy.

Requires a running bpmnchat API server sharing storage with the proxy.

Examples:
  bpmnchat sessions list --outcome rendered --limit 10
  bpmnchat sessions show 3f2a9c1e-...
  bpmnchat sessions diagram 3f2a9c1e-... -o order.bpmn
  bpmnchat sessions stats`

const sessionsShortDesc string = "Browse recorded chat sessions"

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, sessionsFlagKeys)

			cfg, err := config.Resolve(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.apiTarget = cfg.Client.APITarget
			cmder.client = NewClient(cmder.apiTarget)
			return nil
		},
	}

	// Persistent so the subcommands share one target flag.
	def := config.Flags[config.FlagAPITarget]
	cmd.PersistentFlags().StringVar(&cmder.apiTarget, def.Name, "", def.Description)

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newShowCmd())
	cmd.AddCommand(cmder.newDiagramCmd())
	cmd.AddCommand(cmder.newStatsCmd())

	return cmd
}

func (c *sessionsCommander) newListCmd() *cobra.Command {
	var (
		limit   int
		outcome string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.client.List(cmd.Context(), limit, outcome)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if list.Count == 0 {
				fmt.Fprintln(w, "No sessions found.")
				return nil
			}

			fmt.Fprintf(w, "\n%s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("Sessions (%d)", list.Count)))
			for _, s := range list.Sessions {
				mark := cliui.SuccessMark
				if s.Outcome != "rendered" {
					mark = cliui.WarnMark
				}
				if s.Outcome == "failed" || s.Outcome == "render_failed" {
					mark = cliui.FailMark
				}

				model := s.Model
				if s.Reasoner {
					model += " (reasoner)"
				}

				fmt.Fprintf(w, "  %s %s  %s  %s  %s\n",
					mark,
					cliui.NameStyle.Render(s.ID),
					cliui.ValueStyle.Render(fmt.Sprintf("%-13s", s.Outcome)),
					cliui.DimStyle.Render(s.Provider+"/"+model),
					cliui.DimStyle.Render(cliui.FormatDuration(time.Duration(s.DurationMs)*time.Millisecond)),
				)
				fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(utils.Truncate(utils.OneLine(s.Prompt), 60)))
			}
			fmt.Fprintln(w)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list (0 lists all)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only list sessions with this outcome (rendered, render_failed, no_payload, failed)")

	return cmd
}

func (c *sessionsCommander) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the prompt and reply of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			row := func(key, value string) {
				fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-10s", key+":")), cliui.ValueStyle.Render(value))
			}

			fmt.Fprintln(w)
			row("Session", rec.ID)
			row("Model", fmt.Sprintf("%s/%s", rec.Provider, rec.Model))
			row("Reasoner", strconv.FormatBool(rec.Reasoner))
			row("Outcome", rec.Outcome)
			if rec.Error != "" {
				row("Error", rec.Error)
			}
			row("Started", rec.StartedAt.Local().Format(time.DateTime))
			row("Duration", cliui.FormatDuration(rec.FinishedAt.Sub(rec.StartedAt)))
			row("Deltas", fmt.Sprintf("%d (%d requeued, %d discarded)", rec.Stats.Deltas, rec.Stats.Requeued, rec.Stats.Discarded))

			fmt.Fprintf(w, "\n%s\n%s\n", cliui.HeaderStyle.Render("Prompt"), rec.Prompt)
			fmt.Fprintf(w, "\n%s\n%s\n\n", cliui.HeaderStyle.Render("Reply"), rec.Text)
			return nil
		},
	}
}

func (c *sessionsCommander) newDiagramCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "diagram <id>",
		Short: "Print or save the diagram a session produced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.client.Diagram(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), doc)
				return nil
			}

			return cliui.Step(cmd.OutOrStdout(), "Writing diagram to "+out, func() error {
				return os.WriteFile(out, []byte(doc), 0o644)
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the diagram to this file instead of stdout")
	return cmd
}

func (c *sessionsCommander) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count sessions by outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("Total:"), cliui.ValueStyle.Render(strconv.Itoa(stats.Total)))
			for _, outcome := range []string{"rendered", "render_failed", "no_payload", "failed"} {
				fmt.Fprintf(w, "  %s %s\n",
					cliui.KeyStyle.Render(fmt.Sprintf("%-14s", outcome+":")),
					cliui.ValueStyle.Render(strconv.Itoa(stats.Outcomes[outcome])),
				)
			}
			fmt.Fprintln(w)
			return nil
		},
	}
}

// Client calls the bpmnchat API server.
type Client struct {
	target string
	http   *http.Client
}

// NewClient returns a Client for the API server at target.
func NewClient(target string) *Client {
	return &Client{
		target: strings.TrimSuffix(target, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// List fetches session summaries. A zero limit lists all sessions.
func (c *Client) List(ctx context.Context, limit int, outcome string) (*api.ListResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if outcome != "" {
		q.Set("outcome", outcome)
	}

	var list api.ListResponse
	if err := c.getJSON(ctx, "/v1/sessions", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get fetches one stored session.
func (c *Client) Get(ctx context.Context, id string) (*storage.Record, error) {
	var rec storage.Record
	if err := c.getJSON(ctx, "/v1/sessions/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Stats fetches session counts per outcome.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var stats api.StatsResponse
	if err := c.getJSON(ctx, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Diagram fetches the formatted diagram XML of a session.
func (c *Client) Diagram(ctx context.Context, id string) (string, error) {
	body, err := c.get(ctx, "/v1/sessions/"+url.PathEscape(id)+"/diagram", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	u := c.target + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bpmnchat API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e llm.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
