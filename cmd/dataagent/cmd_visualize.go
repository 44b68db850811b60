package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/elee1766/dataagent/src/app"
	"github.com/elee1766/dataagent/src/theme"
	"github.com/elee1766/dataagent/src/visualize"
)

// VisualizeCmd runs the standalone visualization pipeline.
type VisualizeCmd struct {
	Request []string `arg:"" optional:"" help:"What to chart, in plain language"`
	SQL     string   `help:"Chart this SELECT instead of generating one"`
	JSON    bool     `help:"Print the result as JSON"`
}

func (c *VisualizeCmd) Run(cli *CLI) error {
	req := visualize.Request{
		UserRequest: strings.Join(c.Request, " "),
		SQLQuery:    c.SQL,
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

	res, err := a.Visualizer().Run(ctx, req)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(cli.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	styles := theme.Current()
	w := cli.stdout()
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("Image:"), res.ImageFilePath)
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("SQL:"), res.SQLQuery)
	fmt.Fprintln(w, styles.Response.Render(res.Insights))
	return nil
}
