package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"study-pipeline/constant"
	"study-pipeline/entities"
	"study-pipeline/pkg/blob"
	"study-pipeline/repository"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// Pipeline drives one upload from processing to a terminal status.
type Pipeline interface {
	Run(ctx context.Context, uploadId string, kind constant.UploadKind, blobURL string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*blob.Object, error)
}

type Options struct {
	KeyPointsPolicy constant.KeyPointsPolicy
	// StaleAfter lets a new run take over an upload stuck in processing.
	StaleAfter time.Duration
}

type pipeline struct {
	repo        repository.UploadRepository
	fetcher     Fetcher
	transcriber *Transcriber
	extraction  *Extraction
	summarizer  *Summarizer
	opts        Options
}

func NewPipeline(
	repo repository.UploadRepository,
	fetcher Fetcher,
	transcriber *Transcriber,
	extraction *Extraction,
	summarizer *Summarizer,
	opts Options,
) Pipeline {
	if opts.KeyPointsPolicy == "" {
		opts.KeyPointsPolicy = constant.KeyPointsBestEffort
	}
	return &pipeline{
		repo:        repo,
		fetcher:     fetcher,
		transcriber: transcriber,
		extraction:  extraction,
		summarizer:  summarizer,
		opts:        opts,
	}
}

func (p *pipeline) Run(ctx context.Context, uploadId string, kind constant.UploadKind, blobURL string) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("upload_id", uploadId).Str("kind", kind.String()).Logger()
	ctx = logger.WithContext(ctx)

	if strings.TrimSpace(uploadId) == "" || strings.TrimSpace(blobURL) == "" || !kind.Valid() {
		return stageError(StageValidation, ErrInvalidInput,
			fmt.Errorf("uploadId, fileType (audio|document) and fileUrl are required"))
	}

	upload, err := p.repo.ClaimUpload(ctx, uploadId, p.opts.StaleAfter)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return stageError(StageClaim, ErrUploadNotFound, err)
	case errors.Is(err, repository.ErrAlreadyProcessing):
		logger.Info().Msg("upload is already being processed")
		return stageError(StageClaim, ErrRunInProgress, nil)
	case err != nil:
		logger.Error().Err(err).Msg("failed to mark upload as processing")
		return stageError(StageClaim, ErrConfiguration, err)
	}
	logger.Info().Msg("processing upload")

	defer func() {
		if err == nil {
			return
		}
		logger.Error().Err(err).Msg("upload processing failed")
		if markErr := p.repo.MarkFailed(context.WithoutCancel(ctx), uploadId, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to mark upload as failed")
		}
	}()

	start := time.Now()

	logger.Info().Msg("fetching content")
	object, err := p.fetcher.Fetch(ctx, blobURL)
	if err != nil {
		return stageError(StageFetch, ErrContentFetch, err)
	}

	var text string
	switch kind {
	case constant.UploadKindAudio:
		text, err = p.transcribe(ctx, upload, object)
	case constant.UploadKindDocument:
		text, err = p.extract(ctx, upload, blobURL, object)
	}
	if err != nil {
		return err
	}

	if err = p.summarize(ctx, upload.ID, text); err != nil {
		return err
	}

	if err = p.repo.MarkCompleted(ctx, upload.ID); err != nil {
		return stageError(StageCompletion, ErrPersistence, err)
	}

	logger.Info().Dur("elapsed", time.Since(start)).Msg("upload completed")
	return nil
}

func (p *pipeline) transcribe(ctx context.Context, upload *entities.UploadRecord, object *blob.Object) (string, error) {
	zerolog.Ctx(ctx).Info().Int("bytes", len(object.Data)).Msg("transcribing audio")
	transcription, err := p.transcriber.Transcribe(ctx, object)
	if err != nil {
		return "", stageError(StageTranscription, ErrUpstreamAPI, err)
	}

	artifact := &entities.TranscriptArtifact{
		UploadID:   upload.ID,
		RawPayload: datatypes.JSON(transcription.Raw),
	}
	if err := p.repo.CreateTranscript(ctx, artifact); err != nil {
		return "", stageError(StageTranscription, ErrPersistence, err)
	}

	if upload.Duration == nil {
		if seconds := transcription.Duration(); seconds > 0 {
			if err := p.repo.UpdateDuration(ctx, upload.ID, seconds); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to store audio duration")
			}
		}
	}

	return transcription.Text, nil
}

func (p *pipeline) extract(ctx context.Context, upload *entities.UploadRecord, blobURL string, object *blob.Object) (string, error) {
	name := documentName(blobURL, object, upload)
	zerolog.Ctx(ctx).Info().Str("document", name).Int("bytes", len(object.Data)).Msg("extracting document text")

	text, err := p.extraction.Extract(ctx, name, object.Data)
	if err != nil {
		return "", stageError(StageExtraction, ErrUnreadableContent, err)
	}

	if err := p.repo.CreateExtractedText(ctx, &entities.ExtractedTextArtifact{UploadID: upload.ID, Text: text}); err != nil {
		return "", stageError(StageExtraction, ErrPersistence, err)
	}
	return text, nil
}

func (p *pipeline) summarize(ctx context.Context, uploadId string, text string) error {
	zerolog.Ctx(ctx).Info().Msg("summarizing content")
	result, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		return stageError(StageSummarization, ErrUpstreamAPI, err)
	}

	if err := p.repo.CreateSummary(ctx, &entities.SummaryArtifact{UploadID: uploadId, Text: result.Summary}); err != nil {
		return stageError(StageSummarization, ErrPersistence, err)
	}

	points := make([]*entities.KeyPoint, 0, len(result.KeyPoints))
	for _, kp := range result.KeyPoints {
		points = append(points, &entities.KeyPoint{UploadID: uploadId, Text: kp.Text, Importance: kp.Importance})
	}
	if err := p.repo.CreateKeyPoints(ctx, points); err != nil {
		if p.opts.KeyPointsPolicy == constant.KeyPointsRequired {
			return stageError(StageSummarization, ErrPersistence, fmt.Errorf("key points: %w", err))
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("key_points", len(points)).Msg("failed to store key points, keeping summary")
	}
	return nil
}

// documentName prefers the extension in the URL path, then the fetched
// object's name, then the upload's display name.
func documentName(blobURL string, object *blob.Object, upload *entities.UploadRecord) string {
	if u, err := url.Parse(blobURL); err == nil && path.Ext(u.Path) != "" {
		return path.Base(u.Path)
	}
	if object != nil && path.Ext(object.Name) != "" {
		return object.Name
	}
	if upload != nil && upload.DisplayName != "" {
		return upload.DisplayName
	}
	return path.Base(blobURL)
}
