package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elee1766/dataagent/src/app"
	"github.com/elee1766/dataagent/src/assistant"
	"github.com/elee1766/dataagent/src/config"
	"github.com/elee1766/dataagent/src/theme"
)

// DeployCmd creates the hosted assistant.
type DeployCmd struct {
	Name   string `help:"Assistant name (overrides assistant.name)"`
	Model  string `help:"Assistant model (overrides assistant.model)"`
	DryRun bool   `help:"Print the assistant definition without creating it"`
	Save   string `type:"path" help:"Write the config with the new assistant id to this file"`
}

func (c *DeployCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Name != "" {
		cfg.Assistant.Name = c.Name
	}
	if c.Model != "" {
		cfg.Assistant.Model = c.Model
	}
	logger := cli.logger(cfg)
	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	def, err := assistant.Definition(assistant.Options{
		Name:  cfg.Assistant.Name,
		Model: cfg.Assistant.Model,
	}, a.Toolbox)
	if err != nil {
		return err
	}

	if c.DryRun {
		enc := json.NewEncoder(cli.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(def)
	}

	created, err := assistant.Deploy(ctx, a.Client, def, logger)
	if err != nil {
		return err
	}

	styles := theme.Current()
	fmt.Fprintf(cli.stdout(), "%s %s\n", styles.Success.Render("Assistant created:"), created.ID)

	if c.Save == "" {
		fmt.Fprintf(cli.stdout(), "Set assistant.id or DATAAGENT_ASSISTANT_ID to %s\n", created.ID)
		return nil
	}
	cfg.Assistant.ID = created.ID
	if err := config.NewLoader(config.GetConfigPaths(cli.Config)).SaveFile(cfg, c.Save); err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "Saved %s\n", c.Save)
	return nil
}
