package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chararch/starbatch/store"
	"github.com/chararch/starbatch/store/mssql"
	"github.com/chararch/starbatch/store/mysql"
	"github.com/chararch/starbatch/store/postgres"
	"github.com/chararch/starbatch/store/sqlite"
	"github.com/chararch/starbatch/warehouse"
)

var dialects = map[string]store.Dialect{
	"mssql":    mssql.Dialect{},
	"mysql":    mysql.Dialect{},
	"postgres": postgres.Dialect{},
	"sqlite":   sqlite.Dialect{},
}

func newDDLCommand(stdout io.Writer) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print or apply the CREATE TABLE statements of the star schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, "store")
			if err != nil {
				return err
			}
			if !apply {
				d, ok := dialects[strings.ToLower(cfg.Store.Kind)]
				if !ok {
					return fmt.Errorf("unknown store kind: %v", cfg.Store.Kind)
				}
				for _, stmt := range warehouse.DDL(d) {
					fmt.Fprintf(stdout, "%s;\n\n", stmt)
				}
				return nil
			}
			ctx := cmd.Context()
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			for i, stmt := range warehouse.DDL(s.Dialect()) {
				if err := s.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("create %v: %w", warehouse.AllTables[i], err)
				}
				logger.Info(ctx, "table ready: %v", warehouse.AllTables[i])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Execute the statements against the configured store.")
	return cmd
}
