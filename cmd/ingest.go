package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Liviu-netizen/bulldozer-marketing/config"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/ingest"
	"github.com/Liviu-netizen/bulldozer-marketing/internal/store"
	azure "github.com/Liviu-netizen/bulldozer-marketing/provider/azure"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var reset bool
	var cmdIngest = &cobra.Command{
		Use:   "ingest",
		Short: "Index the marketing site content for retrieval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			st, err := store.New(ctx, cfg.Databases.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			provider, err := azure.NewClient(cfg.Providers.AzureOpenAI)
			if err != nil {
				return err
			}
			ingester, err := ingest.NewIngester(cfg.Ingest, st, provider, nil)
			if err != nil {
				return err
			}
			return ingester.Run(ctx, reset)
		},
	}
	cmdIngest.Flags().BoolVar(&reset, "reset", false, "delete existing chunks for the configured sources first")
	cmdIngest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmdIngest
}
