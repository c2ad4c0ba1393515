package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wordstory/internal/adapter/store"
	"wordstory/internal/adapter/tui/components"
	"wordstory/internal/domain"
	"wordstory/internal/infra/config"
)

const statsWidth = 80

func statsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics of past games",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled {
				return fmt.Errorf("%w: store is disabled in config", domain.ErrStatsStore)
			}

			st, err := store.NewSQLiteStatsStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			md := components.HistoryMarkdown(records)
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), components.RenderMarkdown(md, statsWidth))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 5, "number of games to show (0 for all)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")

	return cmd
}
