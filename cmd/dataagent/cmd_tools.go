package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/assistant"
	"github.com/elee1766/dataagent/src/tools"
	tool_similarkeywords "github.com/elee1766/dataagent/src/tools/tool_similarkeywords"
)

// ToolsCmd lists the tools declared to the assistant.
type ToolsCmd struct {
	Format string `short:"f" enum:"table,json,schema" default:"table" help:"Output format"`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	// Listing only needs the declarations, so no database is opened.
	tb, err := tools.NewToolbox(tools.Deps{
		Fs:       afero.NewMemMapFs(),
		Keywords: tool_similarkeywords.NewIndex(afero.NewMemMapFs(), "", nil, ""),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to build tools: %w", err)
	}
	all := tb.Tools()

	w := cli.stdout()
	switch c.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(agent.ToChatTools(all))
	case "schema":
		_, err := fmt.Fprint(w, assistant.FormatTools(all))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t-----------")
	for _, t := range all {
		fmt.Fprintf(tw, "%s\t%s\n", t.GetName(), firstLine(t.GetDescription()))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
