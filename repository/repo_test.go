package repository_test

import (
	"context"
	"study-pipeline/constant"
	"study-pipeline/entities"
	"study-pipeline/repository"
	"study-pipeline/repository/repotest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newUpload(t *testing.T, repo repository.UploadRepository) *entities.UploadRecord {
	t.Helper()
	upload := &entities.UploadRecord{
		OwnerID:     "owner-1",
		DisplayName: "lecture.pdf",
		Kind:        constant.UploadKindDocument,
		StorageURL:  "http://blob.local/lecture.pdf",
		ByteSize:    1024,
	}
	require.NoError(t, repo.CreateUpload(context.Background(), upload))
	return upload
}

func TestCreateUpload_AssignsIdAndStatus(t *testing.T) {
	repo, _ := repotest.NewSQLite(t)
	upload := newUpload(t, repo)

	assert.NotEmpty(t, upload.ID)
	found, err := repo.FindUploadById(context.Background(), upload.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.UploadStatusUploaded, found.Status)
	assert.Nil(t, found.ErrorMessage)
}

func TestFindUploadById_NotFound(t *testing.T) {
	repo, _ := repotest.NewSQLite(t)
	_, err := repo.FindUploadById(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClaimUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("uploaded becomes processing", func(t *testing.T) {
		repo, _ := repotest.NewSQLite(t)
		upload := newUpload(t, repo)

		claimed, err := repo.ClaimUpload(ctx, upload.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, constant.UploadStatusProcessing, claimed.Status)
	})

	t.Run("second claim is rejected while processing", func(t *testing.T) {
		repo, _ := repotest.NewSQLite(t)
		upload := newUpload(t, repo)

		_, err := repo.ClaimUpload(ctx, upload.ID, time.Hour)
		require.NoError(t, err)
		_, err = repo.ClaimUpload(ctx, upload.ID, time.Hour)
		assert.ErrorIs(t, err, repository.ErrAlreadyProcessing)
	})

	t.Run("stale processing claim can be taken over", func(t *testing.T) {
		repo, db := repotest.NewSQLite(t)
		upload := newUpload(t, repo)

		_, err := repo.ClaimUpload(ctx, upload.ID, time.Minute)
		require.NoError(t, err)
		require.NoError(t, db.Model(&entities.UploadRecord{}).Where("id = ?", upload.ID).
			UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

		claimed, err := repo.ClaimUpload(ctx, upload.ID, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, constant.UploadStatusProcessing, claimed.Status)
	})

	t.Run("failed upload can be resubmitted and error is cleared", func(t *testing.T) {
		repo, _ := repotest.NewSQLite(t)
		upload := newUpload(t, repo)

		_, err := repo.ClaimUpload(ctx, upload.ID, 0)
		require.NoError(t, err)
		require.NoError(t, repo.MarkFailed(ctx, upload.ID, "boom"))

		claimed, err := repo.ClaimUpload(ctx, upload.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, constant.UploadStatusProcessing, claimed.Status)
		assert.Nil(t, claimed.ErrorMessage)
	})

	t.Run("unknown upload", func(t *testing.T) {
		repo, _ := repotest.NewSQLite(t)
		_, err := repo.ClaimUpload(ctx, "missing", 0)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestTerminalWritesRequireProcessing(t *testing.T) {
	ctx := context.Background()
	repo, _ := repotest.NewSQLite(t)
	upload := newUpload(t, repo)

	assert.ErrorIs(t, repo.MarkCompleted(ctx, upload.ID), repository.ErrStatusConflict)

	_, err := repo.ClaimUpload(ctx, upload.ID, 0)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, upload.ID, "summarization failed: quota"))

	// an error status is never overwritten by a late completion
	assert.ErrorIs(t, repo.MarkCompleted(ctx, upload.ID), repository.ErrStatusConflict)

	found, err := repo.FindUploadById(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.UploadStatusError, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, "summarization failed: quota", *found.ErrorMessage)
}

func TestUpdateDuration_OnlyWhenUnknown(t *testing.T) {
	ctx := context.Background()
	repo, _ := repotest.NewSQLite(t)
	upload := newUpload(t, repo)

	require.NoError(t, repo.UpdateDuration(ctx, upload.ID, 12.5))
	require.NoError(t, repo.UpdateDuration(ctx, upload.ID, 99))

	found, err := repo.FindUploadById(ctx, upload.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Duration)
	assert.InDelta(t, 12.5, *found.Duration, 0.001)
}

func TestArtifacts(t *testing.T) {
	ctx := context.Background()
	repo, db := repotest.NewSQLite(t)
	upload := newUpload(t, repo)

	require.NoError(t, repo.CreateTranscript(ctx, &entities.TranscriptArtifact{
		UploadID:   upload.ID,
		RawPayload: datatypes.JSON(`{"text":"hello","words":[]}`),
	}))
	require.NoError(t, repo.CreateExtractedText(ctx, &entities.ExtractedTextArtifact{UploadID: upload.ID, Text: "body"}))
	require.NoError(t, repo.CreateSummary(ctx, &entities.SummaryArtifact{UploadID: upload.ID, Text: "short"}))
	require.NoError(t, repo.CreateKeyPoints(ctx, []*entities.KeyPoint{
		{UploadID: upload.ID, Text: "low", Importance: 1},
		{UploadID: upload.ID, Text: "clamped high", Importance: 9},
		{UploadID: upload.ID, Text: "clamped low", Importance: -3},
		{UploadID: upload.ID, Text: "default"},
	}))
	require.NoError(t, repo.CreateKeyPoints(ctx, nil))

	var transcripts int64
	require.NoError(t, db.Model(&entities.TranscriptArtifact{}).Where("upload_id = ?", upload.ID).Count(&transcripts).Error)
	assert.Equal(t, int64(1), transcripts)

	summary, err := repo.FindLatestSummary(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, "short", summary.Text)

	points, err := repo.ListKeyPoints(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, "clamped high", points[0].Text)
	assert.Equal(t, 5, points[0].Importance)
	assert.Equal(t, "default", points[1].Text)
	assert.Equal(t, 3, points[1].Importance)
	assert.Equal(t, 1, points[2].Importance)
	assert.Equal(t, 1, points[3].Importance)

	_, err = repo.FindLatestSummary(ctx, "other")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
