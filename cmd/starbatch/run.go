package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/metrics"
	"github.com/chararch/starbatch/warehouse"
)

func newRunCommand(stdout io.Writer) *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full star-schema load.",
		Long: `Run extracts the sources, transforms and loads the dimensions, prepares and
loads the sales facts and audits the warehouse. The command fails only when a
phase fails; failed batches are reported in the summary.`,
		Example: `  starbatch run -c starbatch.toml --param date=2019-03-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			storage, err := cfg.FileStorage(ctx)
			if err != nil {
				return err
			}
			opts, err := cfg.Options(s, cfg.Extractor(storage))
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			opts.BatchListeners = append(opts.BatchListeners, m)
			opts.Listeners = append(opts.Listeners, m)
			if cfg.Metrics.Addr != "" {
				go func() {
					if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
						logger.Error(ctx, "metrics endpoint stopped, addr:%v, err:%v", cfg.Metrics.Addr, err)
					}
				}()
				logger.Info(ctx, "serving metrics on %v/metrics", cfg.Metrics.Addr)
			}

			repo := starbatch.NewMemoryRepository()
			if cfg.History.Enabled {
				if repo, err = starbatch.NewSQLRepository(ctx, s); err != nil {
					return err
				}
			}
			starbatch.SetRepository(repo)

			p, err := warehouse.NewPipeline(opts)
			if err != nil {
				return err
			}
			if err := starbatch.Register(p); err != nil {
				return err
			}
			defer starbatch.Unregister(p)

			runParams := make(map[string]interface{}, len(params))
			for k, v := range params {
				runParams[k] = v
			}
			execution, err := starbatch.Start(ctx, warehouse.PipelineName, runParams)
			if execution != nil {
				warehouse.Summarize(execution).Render(stdout)
			}
			return err
		},
	}
	cmd.Flags().StringToStringVar(&params, "param", nil, "Run parameter as key=value, referenced by {key} in source paths.")
	return cmd
}
