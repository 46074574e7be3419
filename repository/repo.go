package repository

import (
	"context"
	"database/sql"
	"errors"
	"study-pipeline/constant"
	"study-pipeline/entities"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound          = errors.New("upload not found")
	ErrAlreadyProcessing = errors.New("upload is already processing")
	ErrStatusConflict    = errors.New("upload is not in processing status")
)

type UploadRepository interface {
	AutoMigrate(ctx context.Context) error
	CreateUpload(ctx context.Context, upload *entities.UploadRecord) error
	FindUploadById(ctx context.Context, id string) (*entities.UploadRecord, error)
	// ClaimUpload moves the upload to processing unless another run holds it.
	// A processing claim older than staleAfter can be taken over; zero disables takeover.
	ClaimUpload(ctx context.Context, id string, staleAfter time.Duration) (*entities.UploadRecord, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, message string) error
	UpdateDuration(ctx context.Context, id string, seconds float64) error
	CreateTranscript(ctx context.Context, artifact *entities.TranscriptArtifact) error
	CreateExtractedText(ctx context.Context, artifact *entities.ExtractedTextArtifact) error
	CreateSummary(ctx context.Context, artifact *entities.SummaryArtifact) error
	CreateKeyPoints(ctx context.Context, points []*entities.KeyPoint) error
	FindLatestSummary(ctx context.Context, uploadId string) (*entities.SummaryArtifact, error)
	ListKeyPoints(ctx context.Context, uploadId string) ([]*entities.KeyPoint, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (UploadRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRepoFromGorm(gormDB), nil
}

func NewRepoFromGorm(db *gorm.DB) UploadRepository {
	return &repo{
		db: db,
	}
}

func (r *repo) GetDB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *repo) AutoMigrate(ctx context.Context) error {
	return r.GetDB(ctx).AutoMigrate(
		&entities.UploadRecord{},
		&entities.TranscriptArtifact{},
		&entities.ExtractedTextArtifact{},
		&entities.SummaryArtifact{},
		&entities.KeyPoint{},
	)
}

func (r *repo) CreateUpload(ctx context.Context, upload *entities.UploadRecord) error {
	return r.GetDB(ctx).Create(upload).Error
}

func (r *repo) FindUploadById(ctx context.Context, id string) (*entities.UploadRecord, error) {
	upload := &entities.UploadRecord{}
	err := r.GetDB(ctx).First(upload, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return upload, nil
}

func (r *repo) ClaimUpload(ctx context.Context, id string, staleAfter time.Duration) (*entities.UploadRecord, error) {
	query := r.GetDB(ctx).Model(&entities.UploadRecord{}).Where("id = ?", id)
	if staleAfter > 0 {
		query = query.Where("(status <> ? OR updated_at < ?)", constant.UploadStatusProcessing, time.Now().Add(-staleAfter))
	} else {
		query = query.Where("status <> ?", constant.UploadStatusProcessing)
	}

	res := query.Updates(map[string]interface{}{
		"status":        constant.UploadStatusProcessing,
		"error_message": nil,
		"updated_at":    time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		if _, err := r.FindUploadById(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyProcessing
	}

	return r.FindUploadById(ctx, id)
}

func (r *repo) MarkCompleted(ctx context.Context, id string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":        constant.UploadStatusCompleted,
		"error_message": nil,
		"updated_at":    time.Now(),
	})
}

func (r *repo) MarkFailed(ctx context.Context, id string, message string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":        constant.UploadStatusError,
		"error_message": message,
		"updated_at":    time.Now(),
	})
}

// finish writes a terminal status; only a processing upload may move.
func (r *repo) finish(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.GetDB(ctx).Model(&entities.UploadRecord{}).
		Where("id = ? AND status = ?", id, constant.UploadStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repo) UpdateDuration(ctx context.Context, id string, seconds float64) error {
	return r.GetDB(ctx).Model(&entities.UploadRecord{}).
		Where("id = ? AND duration IS NULL", id).
		Update("duration", seconds).Error
}

func (r *repo) CreateTranscript(ctx context.Context, artifact *entities.TranscriptArtifact) error {
	return r.GetDB(ctx).Create(artifact).Error
}

func (r *repo) CreateExtractedText(ctx context.Context, artifact *entities.ExtractedTextArtifact) error {
	return r.GetDB(ctx).Create(artifact).Error
}

func (r *repo) CreateSummary(ctx context.Context, artifact *entities.SummaryArtifact) error {
	return r.GetDB(ctx).Create(artifact).Error
}

func (r *repo) CreateKeyPoints(ctx context.Context, points []*entities.KeyPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.GetDB(ctx).Create(&points).Error
}

func (r *repo) FindLatestSummary(ctx context.Context, uploadId string) (*entities.SummaryArtifact, error) {
	summary := &entities.SummaryArtifact{}
	err := r.GetDB(ctx).Where("upload_id = ?", uploadId).Order("created_at DESC").First(summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *repo) ListKeyPoints(ctx context.Context, uploadId string) ([]*entities.KeyPoint, error) {
	var points []*entities.KeyPoint
	err := r.GetDB(ctx).Where("upload_id = ?", uploadId).Order("importance DESC").Order("created_at ASC").Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}
