package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"study-pipeline/constant"
	"study-pipeline/dto"
	"study-pipeline/entities"
	"study-pipeline/repository"
	"study-pipeline/service"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Uploader interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, message any) error
}

type API struct {
	pipeline       service.Pipeline
	repo           repository.UploadRepository
	uploader       Uploader
	publisher      Publisher
	maxUploadBytes int64

	background sync.WaitGroup
}

// NewAPI builds the HTTP handlers. publisher may be nil, in which case new
// uploads are processed in a detached goroutine.
func NewAPI(pipeline service.Pipeline, repo repository.UploadRepository, uploader Uploader, publisher Publisher, maxUploadBytes int64) *API {
	return &API{
		pipeline:       pipeline,
		repo:           repo,
		uploader:       uploader,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
	}
}

// Wait blocks until every in-process run started by the upload endpoint has
// finished.
func (a *API) Wait() {
	a.background.Wait()
}

func RegisterRoutes(r *gin.Engine, api *API) {
	r.GET("/health", api.handleHealth)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/process-upload", api.handleProcessUpload)
		apiGroup.POST("/uploads", MaxBodySize(api.maxUploadBytes), api.handleCreateUpload)
		apiGroup.GET("/uploads/:id", api.handleGetUpload)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (a *API) handleProcessUpload(c *gin.Context) {
	var payload dto.ProcessUploadMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.UploadId == "" || payload.FileUrl == "" || !payload.Kind().Valid() {
		respondMessage(c, http.StatusBadRequest, "uploadId, fileType (audio|document) and fileUrl are required")
		return
	}

	// the run outlives a disconnected client; the record keeps the outcome
	ctx := context.WithoutCancel(c.Request.Context())
	if err := a.pipeline.Run(ctx, payload.UploadId, payload.Kind(), payload.FileUrl); err != nil {
		respondError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, dto.ProcessUploadResponse{Success: true})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".mp4": {}, ".wav": {}, ".webm": {}, ".ogg": {}, ".flac": {}, ".aac": {},
}

var documentExtensions = map[string]struct{}{
	".pdf": {}, ".docx": {}, ".doc": {}, ".txt": {},
}

// kindFromName infers the upload kind from the file extension.
func kindFromName(name string) (constant.UploadKind, bool) {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := audioExtensions[ext]; ok {
		return constant.UploadKindAudio, true
	}
	if _, ok := documentExtensions[ext]; ok {
		return constant.UploadKindDocument, true
	}
	return "", false
}

func (a *API) handleCreateUpload(c *gin.Context) {
	ownerId := strings.TrimSpace(c.PostForm("ownerId"))
	if ownerId == "" {
		respondMessage(c, http.StatusBadRequest, "missing ownerId")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing file")
		return
	}

	kind := constant.UploadKind(strings.TrimSpace(c.PostForm("kind")))
	if kind == "" {
		inferred, ok := kindFromName(fileHeader.Filename)
		if !ok {
			respondMessage(c, http.StatusBadRequest, "cannot infer kind from file name, pass kind=audio|document")
			return
		}
		kind = inferred
	}
	if !kind.Valid() {
		respondMessage(c, http.StatusBadRequest, "kind must be audio or document")
		return
	}

	displayName := strings.TrimSpace(c.PostForm("displayName"))
	if displayName == "" {
		displayName = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	id := uuid.NewString()
	key := path.Join("uploads", ownerId, id+strings.ToLower(path.Ext(fileHeader.Filename)))
	contentType := fileHeader.Header.Get("Content-Type")

	storageURL, err := a.uploader.Put(ctx, key, file, fileHeader.Size, contentType)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to store upload")
		respondMessage(c, http.StatusInternalServerError, "failed to store file: "+err.Error())
		return
	}

	upload := &entities.UploadRecord{
		ID:          id,
		OwnerID:     ownerId,
		DisplayName: displayName,
		Kind:        kind,
		StorageURL:  storageURL,
		ByteSize:    fileHeader.Size,
		Status:      constant.UploadStatusUploaded,
	}
	if err := a.repo.CreateUpload(ctx, upload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create upload record")
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	a.trigger(ctx, upload)

	c.JSON(http.StatusAccepted, upload)
}

// trigger queues the upload for processing, falling back to an in-process
// run when no broker is configured or publishing fails.
func (a *API) trigger(ctx context.Context, upload *entities.UploadRecord) {
	message := dto.ProcessUploadMessage{
		UploadId: upload.ID,
		FileType: upload.Kind.String(),
		FileUrl:  upload.StorageURL,
	}

	if a.publisher != nil {
		err := a.publisher.Publish(ctx, message)
		if err == nil {
			return
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("upload_id", upload.ID).Msg("failed to publish upload, processing in-process")
	}

	detached := context.WithoutCancel(ctx)
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		if err := a.pipeline.Run(detached, message.UploadId, message.Kind(), message.FileUrl); err != nil {
			zerolog.Ctx(detached).Warn().Err(err).Str("upload_id", message.UploadId).Msg("background processing failed")
		}
	}()
}

func (a *API) handleGetUpload(c *gin.Context) {
	ctx := c.Request.Context()
	upload, err := a.repo.FindUploadById(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	detail := dto.UploadDetail{Upload: upload, KeyPoints: []*entities.KeyPoint{}}

	summary, err := a.repo.FindLatestSummary(ctx, upload.ID)
	switch {
	case err == nil:
		detail.Summary = &summary.Text
	case !errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	points, err := a.repo.ListKeyPoints(ctx, upload.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if len(points) > 0 {
		detail.KeyPoints = points
	}

	c.JSON(http.StatusOK, detail)
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, dto.ErrorResponse{Error: message})
}
