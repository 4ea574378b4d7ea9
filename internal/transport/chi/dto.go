package chi

import (
	"time"

	"github.com/kailas-cloud/filedex/internal/domain"
	healthuc "github.com/kailas-cloud/filedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/filedex/internal/usecase/ingest"
)

type createCollectionRequest struct {
	Name     string `json:"name"`
	Dim      int    `json:"dim"`
	Metric   string `json:"metric"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type collectionResponse struct {
	Name      string    `json:"name"`
	Dim       int       `json:"dim"`
	Metric    string    `json:"metric"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func collectionToResponse(c domain.Collection) collectionResponse {
	return collectionResponse{
		Name:      c.Name,
		Dim:       c.Dim,
		Metric:    string(c.Metric),
		Provider:  c.Provider,
		Model:     c.Model,
		CreatedAt: time.UnixMilli(c.CreatedAt).UTC(),
	}
}

type collectionListResponse struct {
	Items []collectionResponse `json:"items"`
	Total int                  `json:"total"`
}

type fileResponse struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	Name        string    `json:"name"`
	MIME        string    `json:"mime"`
	Size        int64     `json:"size"`
	Status      string    `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func fileToResponse(f *domain.File) fileResponse {
	return fileResponse{
		ID:          f.ID,
		Collection:  f.Collection,
		Name:        f.Name,
		MIME:        f.MIME,
		Size:        f.Size,
		Status:      string(f.Status),
		FailedStage: string(f.FailedStage),
		ErrorKind:   string(f.ErrorKind),
		ErrorDetail: f.ErrorDetail,
		CreatedAt:   time.UnixMilli(f.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(f.UpdatedAt).UTC(),
	}
}

type fileListResponse struct {
	Items  []fileResponse `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

type taskResponse struct {
	ID          string `json:"id"`
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	ScheduledAt int64  `json:"scheduled_at"`
	StartedAt   int64  `json:"started_at,omitempty"`
	FinishedAt  int64  `json:"finished_at,omitempty"`
}

type documentCounts struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`
}

type fileStatusResponse struct {
	fileResponse
	Documents documentCounts `json:"documents"`
	Tasks     []taskResponse `json:"tasks"`
}

func statusToResponse(report ingestuc.StatusReport) fileStatusResponse {
	tasks := make([]taskResponse, len(report.Tasks))
	for i, t := range report.Tasks {
		tasks[i] = taskResponse{
			ID:          t.ID,
			Stage:       string(t.Stage),
			Status:      string(t.Status),
			Attempts:    t.Attempts,
			LastError:   t.LastError,
			ScheduledAt: t.ScheduledAt,
			StartedAt:   t.StartedAt,
			FinishedAt:  t.FinishedAt,
		}
	}
	return fileStatusResponse{
		fileResponse: fileToResponse(report.File),
		Documents:    documentCounts{Total: report.TotalDocs, Embedded: report.EmbeddedDocs},
		Tasks:        tasks,
	}
}

type queryRequest struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
	TopK   int       `json:"top_k"`
}

type queryHitResponse struct {
	DocumentID string  `json:"document_id"`
	FileID     string  `json:"file_id"`
	Ordinal    int     `json:"ordinal"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type queryResponse struct {
	Hits         []queryHitResponse `json:"hits"`
	TopK         int                `json:"top_k"`
	PromptTokens int                `json:"prompt_tokens,omitempty"`
}

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	RunningTasks int               `json:"running_tasks"`
}

func healthToResponse(report healthuc.Report) healthResponse {
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return healthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		RunningTasks: report.RunningTasks,
	}
}
