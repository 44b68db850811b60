package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/elee1766/dataagent/src/app"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/theme"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// AskCmd runs one conversational turn from the terminal.
type AskCmd struct {
	Text   []string `arg:"" help:"The question"`
	Thread string   `help:"Continue an existing thread"`
	JSON   bool     `help:"Print the turn as JSON"`
}

type askOutput struct {
	ThreadID string                `json:"thread_id"`
	RunID    string                `json:"run_id"`
	Response string                `json:"response"`
	Data     []map[string]any      `json:"data"`
	Charts   []rundriver.ChartInfo `json:"charts"`
}

func (c *AskCmd) Run(cli *CLI) error {
	message := strings.TrimSpace(strings.Join(c.Text, " "))
	if message == "" {
		return fmt.Errorf("no message provided")
	}

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	logger := cli.logger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	assistantID, err := a.AssistantID()
	if err != nil {
		return err
	}

	threadID := c.Thread
	if threadID == "" {
		thread, err := a.Client.CreateThread(ctx)
		if err != nil {
			return fmt.Errorf("failed to create thread: %w", err)
		}
		threadID = thread.ID
	}

	styles := theme.Current()
	driver, err := a.Driver(func(e rundriver.Event) {
		if e.Type == rundriver.EventStatus {
			return
		}
		fmt.Fprintln(os.Stderr, styles.Muted.Render("· "+e.Message))
	})
	if err != nil {
		return err
	}

	res, err := driver.Turn(toolsutil.WithSession(ctx, threadID), threadID, assistantID, message)
	if err != nil {
		return err
	}

	out := askOutput{
		ThreadID: threadID,
		RunID:    res.RunID,
		Response: res.Response,
		Data:     []map[string]any{},
		Charts:   res.Charts,
	}
	if res.Rows != nil && res.Rows.Len() > 0 {
		out.Data = res.Rows.Records()
	}
	if out.Charts == nil {
		out.Charts = []rundriver.ChartInfo{}
	}

	if c.JSON {
		enc := json.NewEncoder(cli.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printTurn(cli.stdout(), styles, out)
	return nil
}

func printTurn(w io.Writer, styles theme.Styles, out askOutput) {
	fmt.Fprintln(w, styles.Response.Render(out.Response))
	for _, ch := range out.Charts {
		fmt.Fprintf(w, "%s %s (%s) %s\n",
			styles.Label.Render("Chart:"), ch.ChartTitle, ch.Type, styles.Muted.Render(ch.ImagePath))
	}
	if len(out.Data) > 0 {
		fmt.Fprintf(w, "%s %d\n", styles.Label.Render("Rows:"), len(out.Data))
	}
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("Thread:"), out.ThreadID)
}
