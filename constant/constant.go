package constant

type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusError      UploadStatus = "error"
)

func (s UploadStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further pipeline action happens automatically.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusCompleted || s == UploadStatusError
}

type UploadKind string

const (
	UploadKindAudio    UploadKind = "audio"
	UploadKindDocument UploadKind = "document"
)

func (k UploadKind) String() string {
	return string(k)
}

func (k UploadKind) Valid() bool {
	return k == UploadKindAudio || k == UploadKindDocument
}

// KeyPointsPolicy decides what a failed key point write does to a run whose
// summary was already stored.
type KeyPointsPolicy string

const (
	KeyPointsBestEffort KeyPointsPolicy = "best_effort"
	KeyPointsRequired   KeyPointsPolicy = "required"
)

const (
	DefaultImportance = 3
	MinImportance     = 1
	MaxImportance     = 5
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
