package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notemind/internal"
	pkgconfig "github.com/starford/notemind/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func publish(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rep, err := internal.Publish(ctx, cmd.String("repo"), cmd.String("branch"), internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep.Published); err != nil {
		return err
	}
	for _, f := range rep.Failed {
		slog.Error("publish failed", slog.String("note_id", f.NoteID), slog.String("error", f.Error()))
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("publish: %d of %d notes failed", len(rep.Failed), len(rep.Failed)+len(rep.Published))
	}
	return nil
}

func importNote(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("import: file argument is required (use - for stdin)")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Import(ctx, data, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Printf("%s\t%s\n", n.ID, n.Title)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "notemind",
		Usage:  "Note intelligence service: AI extraction, autosave and a live workspace over REST and MCP",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:  "publish",
				Usage: "Publish every note to a repository",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repo",
						Usage:   "Repository URL (defaults to publish.repo_url)",
						Sources: cli.EnvVars("NOTEMIND_PUBLISH_REPO"),
					},
					&cli.StringFlag{
						Name:  "branch",
						Usage: "Branch (defaults to publish.branch)",
					},
				},
				Action: publish,
			},
			{
				Name:      "import",
				Usage:     "Import a Markdown file as a note",
				ArgsUsage: "<file|->",
				Action:    importNote,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
