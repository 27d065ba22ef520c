package main

import (
	"context"
	"log"
	"os"

	"github.com/rxtech-lab/argo-bot/internal/version"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the bot configuration `FILE`",
		Value:   "config.yaml",
		Sources: cli.EnvVars("ARGO_BOT_CONFIG"),
	}

	return &cli.Command{
		Name:    "argo-bot",
		Usage:   "Multi-account signal and position engine",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run every configured account until interrupted",
				Flags:  []cli.Flag{configFlag},
				Action: runAction,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate a configuration file",
				Flags:  []cli.Flag{configFlag},
				Action: validateAction,
			},
			{
				Name:      "strategies",
				Usage:     "List the strategy catalog",
				ArgsUsage: "[strategy id]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Include the rule files of this configuration `FILE`",
					},
					&cli.BoolFlag{
						Name:  "schema",
						Usage: "Print the parameter JSON schema of the given strategy",
					},
				},
				Action: strategiesAction,
			},
			{
				Name:  "ledger",
				Usage: "Print the statistics of a simulation ledger as YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Aliases:  []string{"p"},
						Usage:    "Ledger `FILE`",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account id written into the statistics, defaults to the file name",
					},
				},
				Action: ledgerAction,
			},
			{
				Name:  "history",
				Usage: "Print per-account totals of a trade history export",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Aliases:  []string{"p"},
						Usage:    "Parquet `FILE` written by the run command",
						Required: true,
					},
				},
				Action: historyAction,
			},
			{
				Name:  "schema",
				Usage: "Write the configuration JSON schema and a sample configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output `DIR`",
						Value: "config",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
