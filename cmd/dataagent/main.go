package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/elee1766/dataagent/src/config"
	"github.com/elee1766/dataagent/src/theme"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" type:"path" help:"Config file (JSON) layered over the user and project config"`
	LogLevel string `help:"Log level: debug, info, warn, error (overrides logging.level)"`
	BaseURL  string `help:"Custom API base URL"`

	Serve     ServeCmd     `cmd:"" help:"Serve the HTTP API"`
	Ask       AskCmd       `cmd:"" help:"Ask the assistant one question"`
	Visualize VisualizeCmd `cmd:"" help:"Chart a request and describe the chart"`
	Deploy    DeployCmd    `cmd:"" help:"Create the hosted assistant with the registered tools"`
	Tools     ToolsCmd     `cmd:"" help:"List the registered tools"`
	Migrate   MigrateCmd   `cmd:"" help:"Application database migrations"`
	Version   VersionCmd   `cmd:"" help:"Print the version"`

	out io.Writer
}

func (cli *CLI) stdout() io.Writer {
	if cli.out != nil {
		return cli.out
	}
	return os.Stdout
}

// loadConfig loads the layered configuration and applies flag overrides.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, &configError{err: err}
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}

func (cli *CLI) logger(cfg *config.Config) *slog.Logger {
	return createCLILogger(cfg.Logging.Level, os.Stderr)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	_, err := fmt.Fprintln(cli.stdout(), "dataagent", version)
	return err
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dataagent"),
		kong.Description("Natural-language data assistant: SQL, charts and insights"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		styles := theme.Current()
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.Error.Render("Error:"), err)
		os.Exit(exitCode(err))
	}
}
