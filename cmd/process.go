package cmd

import (
	"errors"
	"study-pipeline/config"
	"study-pipeline/constant"
	server2 "study-pipeline/server"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func process(config *config.Config) *cobra.Command {
	var uploadId, kind, url string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "run the pipeline once for an upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !constant.UploadKind(kind).Valid() {
				return errors.New("--kind must be audio or document")
			}

			ctx := server2.SetupLogger(config)
			deps, err := server2.NewDependencies(ctx, config)
			if err != nil {
				return err
			}

			if err := deps.Pipeline.Run(ctx, uploadId, constant.UploadKind(kind), url); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Str("upload_id", uploadId).Msg("upload processed")
			return nil
		},
	}

	cmd.Flags().StringVar(&uploadId, "upload-id", "", "upload record id")
	cmd.Flags().StringVar(&kind, "kind", "", "audio or document")
	cmd.Flags().StringVar(&url, "url", "", "blob url of the uploaded file")
	_ = cmd.MarkFlagRequired("upload-id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
