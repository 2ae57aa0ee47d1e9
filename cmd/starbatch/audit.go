package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/chararch/starbatch/audit"
	"github.com/chararch/starbatch/warehouse"
)

func newAuditCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Run the data quality audit against the loaded warehouse.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, "store")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			report := audit.New(s, warehouse.AuditSpec()).Run(ctx)
			report.Render(stdout)
			return report.Err
		},
	}
}
