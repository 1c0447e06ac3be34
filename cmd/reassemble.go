package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"session-capture/config"
	"session-capture/service"
	"session-capture/storage"
)

func reassemble(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reassemble",
		Short: "run one reassembly sweep and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			ctx := logger.WithContext(cmd.Context())

			store := storage.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
			if err := store.EnsureBucket(ctx); err != nil {
				return err
			}

			svc := service.NewReassemblyService(store, cfg.Reassembly.MinChunks)
			summary, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
