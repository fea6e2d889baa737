package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/satstac/stac-sentinel/internal/api"
	"github.com/satstac/stac-sentinel/internal/api/middleware"
	"github.com/satstac/stac-sentinel/internal/sentinel"
)

var (
	servePublish []string
	serveIndex   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transform service",
	Long: `serve exposes POST /api/v1/collections/{collection}/items: the request body is a
scene metadata document, the response is its STAC Item. Radar annotations are
fetched from the scene's base URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := newLogger(cmd)

		cfg := api.LoadServerConfig()
		cfg.Version = version

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		fetcher, err := newFetcher(ctx, "")
		if err != nil {
			return err
		}

		limiterCfg := middleware.LoadConfig()
		limiter := middleware.NewInMemoryRateLimiter(limiterCfg)

		logger.Info("Rate limiter initialized",
			slog.Int("global_rps", limiterCfg.GlobalRPS),
			slog.Int("client_rps", limiterCfg.ClientRPS),
		)

		opts := []api.Option{api.WithLogger(logger), api.WithRateLimiter(limiter)}

		var index *indexDeps
		if serveIndex {
			if index, err = openIndex(ctx, logger); err != nil {
				return err
			}
			defer index.Close()

			opts = append(opts, api.WithHealthCheck(index.conn))
		}

		if len(servePublish) > 0 || index != nil {
			out, closeSinks, err := newSinks(ctx, sinkOptions{
				quiet:  true,
				topics: servePublish,
				index:  index.itemStore(),
			})
			if err != nil {
				return err
			}
			defer closeSinks(logger)

			opts = append(opts, api.WithSink(out))
		}

		return api.NewServer(cfg, registry, sentinel.NewConverter(fetcher), opts...).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringSliceVar(&servePublish, "publish", nil,
		"Also publish converted Items to an SNS topic ARN or kafka://broker/topic")
	serveCmd.Flags().BoolVar(&serveIndex, "index", false, "Also upsert converted Items into the item index")
}
