package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-bot/internal/combiner"
	"github.com/rxtech-lab/argo-bot/internal/config"
	"github.com/rxtech-lab/argo-bot/internal/history"
	"github.com/rxtech-lab/argo-bot/internal/ledger"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	schemaFileName = "argo-bot-config.json"
	sampleFileName = "argo-bot-config.yaml"
)

func validateAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "%s is valid: %d accounts, %d strategies\n", path, len(cfg.Accounts), len(cfg.Catalog().List())+1)

	return nil
}

// strategiesAction prints the catalog as YAML, or the parameter schema of one strategy.
func strategiesAction(_ context.Context, cmd *cli.Command) error {
	catalog := strategy.DefaultCatalog()

	if path := cmd.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		catalog = cfg.Catalog()
	}

	out := cmd.Root().Writer

	if cmd.Bool("schema") {
		id := cmd.Args().First()
		if id == "" {
			return errors.New(errors.ErrCodeMissingParameter, "--schema needs a strategy id")
		}

		var (
			schema string
			err    error
		)

		if id == combiner.ID {
			schema, err = strategy.ToJSONSchema(&config.CombinerConfig{})
		} else {
			schema, err = catalog.Schema(id)
		}

		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, schema)

		return err
	}

	comb, err := combiner.New(combiner.DefaultConfig())
	if err != nil {
		return err
	}

	descriptors := append([]types.StrategyDescriptor{comb.Descriptor()}, catalog.List()...)

	data, err := yaml.Marshal(descriptors)
	if err != nil {
		return fmt.Errorf("failed to marshal strategies: %w", err)
	}

	_, err = out.Write(data)

	return err
}

func ledgerAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("path")

	l, err := ledger.Load(path)
	if err != nil {
		return err
	}

	account := cmd.String("account")
	if account == "" {
		account = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return types.WriteTradeStats(cmd.Root().Writer, l.Stats(account))
}

func historyAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("path")

	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(errors.ErrCodeDataNotFound, err, "trade history %s", path)
	}

	store, err := history.NewStore(path, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	accounts, err := store.Accounts()
	if err != nil {
		return err
	}

	totals := make([]history.Totals, 0, len(accounts))

	for _, account := range accounts {
		t, err := store.Totals(account)
		if err != nil {
			return err
		}

		totals = append(totals, t)
	}

	data, err := yaml.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to marshal totals: %w", err)
	}

	_, err = cmd.Root().Writer.Write(data)

	return err
}

// schemaAction writes the config schema, and a sample config pointing at it when none exists yet.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("out")

	schema, err := config.Schema()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	schemaPath := filepath.Join(dir, schemaFileName)
	if err := os.WriteFile(schemaPath, []byte(schema), 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Schema written to %s\n", schemaPath)

	samplePath := filepath.Join(dir, sampleFileName)
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	data, err := yaml.Marshal(config.Sample())
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}

	data = append([]byte("# yaml-language-server: $schema="+schemaFileName+"\n"), data...)

	if err := os.WriteFile(samplePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Sample config written to %s\n", samplePath)

	return nil
}
