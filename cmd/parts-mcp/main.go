// SPDX-License-Identifier: Apache-2.0

// parts-mcp serves BOM parsing and catalog matching over MCP, and can run
// one-shot matches from the command line.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/bom"
	"github.com/partsproj/parts-mcp/internal/cache"
	"github.com/partsproj/parts-mcp/internal/catalog"
	"github.com/partsproj/parts-mcp/internal/config"
	"github.com/partsproj/parts-mcp/internal/match"
	"github.com/partsproj/parts-mcp/internal/tool"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "parts-mcp",
		Short:         "BOM parsing and parts-catalog matching over MCP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMatchCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			svc, store, err := buildService(cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			defer store.Close()

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "parts-mcp",
				Version: version,
			}, nil)
			mcp.AddTool(server, tool.MetadataParseBOM, svc.ParseBOM)
			mcp.AddTool(server, tool.MetadataMatchBOM, svc.MatchBOM)
			mcp.AddTool(server, tool.MetadataGenerateBOM, svc.GenerateBOM)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("serving mcp over stdio", zap.String("version", version))
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func newMatchCmd(configPath *string) *cobra.Command {
	var (
		outPath   string
		outFormat string
	)
	cmd := &cobra.Command{
		Use:   "match <bom-file>",
		Short: "Match a single BOM file against the catalog and print a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading bom file: %w", err)
			}

			_, store, matcher, err := buildMatcher(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, diags, err := bom.NewParser(logger).Parse(bom.File{
				Name:    filepath.Base(args[0]),
				Content: content,
			})
			if err != nil {
				return err
			}

			report, err := matcher.MatchBOM(cmd.Context(), rows, diags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if outFormat == "csv" {
				return report.WriteCSV(out)
			}
			return report.WriteJSON(out)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&outFormat, "format", "json", "report format: json or csv")
	return cmd
}

func buildService(cfg config.Config, logger *zap.Logger) (*tool.Service, *cache.Store, error) {
	_, store, matcher, err := buildMatcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return tool.NewService(matcher, logger), store, nil
}

func buildMatcher(cfg config.Config, logger *zap.Logger) (*catalog.Client, *cache.Store, *match.Matcher, error) {
	retry := catalog.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Catalog.MaxAttempts
	client, err := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.APIKey, cfg.Catalog.Timeout, retry, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	cacheOpts := []cache.Option{cache.WithMaxEntries(cfg.Cache.MaxEntries)}
	if cfg.Cache.Dir != "" {
		if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
			logger.Warn("cache dir unavailable, snapshot disabled", zap.Error(err))
		} else {
			cacheOpts = append(cacheOpts, cache.WithSnapshot(filepath.Join(cfg.Cache.Dir, "lookups.json")))
		}
	}
	store := cache.New(logger, cacheOpts...)

	opts := match.DefaultOptions()
	opts.AcceptThreshold = cfg.Match.AcceptThreshold
	opts.AmbiguityMargin = cfg.Match.AmbiguityMargin
	opts.ValueTolerancePct = cfg.Match.ValueTolerancePct
	opts.Workers = cfg.Match.Workers
	opts.RowTimeout = cfg.Match.RowTimeout
	opts.LookupTTL = cfg.Cache.TTL

	return client, store, match.NewMatcher(client, store, opts, logger), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapCfg.Level = level
	// MCP stdio owns stdout; logs must go to stderr.
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		log.Printf("logger init: %v", err)
		return nil, err
	}
	return logger, nil
}
