package server

import (
	"context"
	"study-pipeline/config"
	"study-pipeline/constant"
	"study-pipeline/pkg/blob"
	"study-pipeline/pkg/extractor"
	"study-pipeline/pkg/llm"
	"study-pipeline/pkg/speech"
	"study-pipeline/repository"
	"study-pipeline/service"

	"github.com/rs/zerolog"
)

type Dependencies struct {
	Repo     repository.UploadRepository
	Store    *blob.Store
	Pipeline service.Pipeline
}

// NewDependencies connects the record store and object store and assembles
// the pipeline. A missing MinIO configuration is tolerated: the pipeline can
// still fetch plain HTTP URLs, but uploads through the API fail.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := config.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	repo, err := repository.NewRepo(db)
	if err != nil {
		return nil, err
	}

	minioClient, err := config.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("object store disabled")
		minioClient = nil
	}
	store := blob.NewStore(minioClient, cfg.MinIO.Bucket, cfg.Pipeline.MaxBlobBytes)
	if minioClient != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", cfg.MinIO.Bucket).Msg("failed to ensure bucket")
		}
	}

	return &Dependencies{
		Repo:     repo,
		Store:    store,
		Pipeline: NewPipeline(cfg, repo, store),
	}, nil
}

func NewPipeline(cfg *config.Config, repo repository.UploadRepository, fetcher service.Fetcher) service.Pipeline {
	retry := service.RetryConfig{
		MaxTries:        cfg.Pipeline.Retry.MaxTries,
		InitialInterval: cfg.Pipeline.Retry.InitialInterval,
		MaxInterval:     cfg.Pipeline.Retry.MaxInterval,
	}

	speechClient := speech.NewClient(speech.Config{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: cfg.Speech.BaseURL,
		Model:   cfg.Speech.Model,
		Timeout: cfg.Speech.Timeout,
	})
	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
	})

	return service.NewPipeline(
		repo,
		fetcher,
		service.NewTranscriber(speechClient, retry),
		service.NewExtraction(extractor.New(), cfg.Pipeline.MaxExtractedChars),
		service.NewSummarizer(llmClient, cfg.Pipeline.MaxSummaryChars, retry),
		service.Options{
			KeyPointsPolicy: constant.KeyPointsPolicy(cfg.Pipeline.KeyPointsPolicy),
			StaleAfter:      cfg.Pipeline.StaleAfter,
		},
	)
}
