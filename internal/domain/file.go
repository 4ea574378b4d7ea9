package domain

// FileStatus is the processing state of an uploaded file.
type FileStatus string

const (
	// FileUploaded means the file is stored and parsing has been enqueued.
	FileUploaded FileStatus = "uploaded"
	// FileParsing means text extraction is running.
	FileParsing FileStatus = "parsing"
	// FileChunking means extracted segments are being split into documents.
	FileChunking FileStatus = "chunking"
	// FileEmbedding means document vectors are being generated.
	FileEmbedding FileStatus = "embedding"
	// FileReady means all documents are embedded and queryable.
	FileReady FileStatus = "ready"
	// FileFailed means a stage exhausted its retries or hit a fatal error.
	// FailedStage records where; committed upstream artifacts are kept.
	FileFailed FileStatus = "failed"
	// FileCancelled means stage dispatch was suppressed by the user.
	FileCancelled FileStatus = "cancelled"
)

// Terminal reports whether no further dispatch happens from this status
// without an explicit re-drive.
func (s FileStatus) Terminal() bool {
	return s == FileReady || s == FileFailed || s == FileCancelled
}

// Stage is one unit of pipeline work.
type Stage string

const (
	// StageParse extracts text segments from the stored bytes.
	StageParse Stage = "parse"
	// StageChunk splits segments into ordered documents.
	StageChunk Stage = "chunk"
	// StageEmbed generates vectors for documents lacking one.
	StageEmbed Stage = "embed"
	// StageFinalize derives the terminal file status from document outcomes.
	StageFinalize Stage = "finalize"
)

// NextStage returns the stage dispatched after this one succeeds.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageParse:
		return StageChunk, true
	case StageChunk:
		return StageEmbed, true
	case StageEmbed:
		return StageFinalize, true
	default:
		return "", false
	}
}

// Status returns the file status reported while this stage runs.
func (s Stage) Status() FileStatus {
	switch s {
	case StageParse:
		return FileParsing
	case StageChunk:
		return FileChunking
	case StageEmbed, StageFinalize:
		return FileEmbedding
	default:
		return FileFailed
	}
}

// ValidStage reports whether s names a pipeline stage.
func ValidStage(s Stage) bool {
	switch s {
	case StageParse, StageChunk, StageEmbed, StageFinalize:
		return true
	}
	return false
}

// File is an uploaded asset moving through the ingestion pipeline.
// Mutated only by the orchestrator.
type File struct {
	ID         string
	Collection string
	Name       string
	MIME       string
	Size       int64
	BlobPath   string

	Status      FileStatus
	FailedStage Stage     // set while Status == failed
	ErrorKind   ErrorKind // set while Status == failed
	ErrorDetail string    // set while Status == failed

	CreatedAt int64 // unix millis
	UpdatedAt int64 // unix millis
}
