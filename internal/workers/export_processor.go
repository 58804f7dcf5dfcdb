// internal/workers/export_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/tealeg/xlsx/v3"

	redis_a "github.com/cyclosproject/searchd/internal/adapters/redis_adapter"
	"github.com/cyclosproject/searchd/internal/adapters/storage"
	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

// TaskTypeExport is the asynq task type for search-result exports.
const TaskTypeExport = "export:search"

const (
	exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportPageSize    = 500
	exportMaxRows     = 50_000
	exportStatusTTL   = 24 * time.Hour
)

// ExportTaskPayload is the job description queued for one export: the
// fully normalized query is replayed page by page against the data
// port, so the export sees exactly what the screen saw.
type ExportTaskPayload struct {
	JobID     string             `json:"job_id"`
	SessionID string             `json:"session_id"`
	Screen    string             `json:"screen"`
	Query     domain.SearchQuery `json:"query"`
}

// ExportStatus tracks a job through the queue for polling clients.
type ExportStatus struct {
	JobID       string    `json:"job_id"`
	State       string    `json:"state"` // queued, processing, completed, failed
	RowCount    int       `json:"row_count,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewExportTask builds the asynq task for an export job.
func NewExportTask(payload ExportTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export payload: %w", err)
	}
	return asynq.NewTask(TaskTypeExport, data), nil
}

// ExportStatusKey returns the cache key tracking an export job.
func ExportStatusKey(jobID string) string {
	return redis_a.BuildKey(redis_a.PrefixExport, jobID)
}

// ExportProcessor renders search results into spreadsheets and parks
// them in the artifact store.
type ExportProcessor struct {
	fetcher ports.DataFetcher
	store   storage.ArtifactStore
	cache   ports.CacheRepository
	logger  *slog.Logger
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(fetcher ports.DataFetcher, store storage.ArtifactStore,
	cache ports.CacheRepository, logger *slog.Logger) *ExportProcessor {
	return &ExportProcessor{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		logger:  logger.With(slog.String("processor", "export")),
	}
}

// ProcessExport replays the job's query, renders the rows to xlsx and
// uploads the artifact, leaving a presigned download URL in the status
// record.
func (p *ExportProcessor) ProcessExport(ctx context.Context, t *asynq.Task) error {
	var payload ExportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	p.logger.InfoContext(ctx, "processing export",
		slog.String("job_id", payload.JobID),
		slog.String("screen", payload.Screen))

	p.setStatus(ctx, ExportStatus{JobID: payload.JobID, State: "processing"})

	rows, err := p.collectRows(ctx, payload.Query)
	if err != nil {
		p.setStatus(ctx, ExportStatus{
			JobID: payload.JobID, State: "failed", Error: err.Error(),
		})
		return fmt.Errorf("failed to collect export rows: %w", err)
	}

	data, err := renderWorkbook(payload.Screen, rows)
	if err != nil {
		p.setStatus(ctx, ExportStatus{
			JobID: payload.JobID, State: "failed", Error: err.Error(),
		})
		return fmt.Errorf("failed to render workbook: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s.xlsx", payload.SessionID, payload.JobID)
	if _, err := p.store.Upload(ctx, key, bytes.NewReader(data), exportContentType); err != nil {
		p.setStatus(ctx, ExportStatus{
			JobID: payload.JobID, State: "failed", Error: err.Error(),
		})
		return fmt.Errorf("failed to upload export artifact: %w", err)
	}

	url, err := p.store.GetPresignedURL(ctx, key, exportStatusTTL)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to presign export URL",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err))
	}

	p.setStatus(ctx, ExportStatus{
		JobID:       payload.JobID,
		State:       "completed",
		RowCount:    len(rows),
		DownloadURL: url,
	})

	p.logger.InfoContext(ctx, "export completed",
		slog.String("job_id", payload.JobID),
		slog.Int("rows", len(rows)))

	return nil
}

// collectRows pages through the query until exhausted or the row cap.
func (p *ExportProcessor) collectRows(ctx context.Context, q domain.SearchQuery) ([]domain.TransferRow, error) {
	q.PageSize = exportPageSize

	var rows []domain.TransferRow
	for page := 1; ; page++ {
		q.PageNumber = page
		result, err := p.fetcher.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		rows = append(rows, result.Items...)

		if len(result.Items) < exportPageSize || len(rows) >= exportMaxRows {
			break
		}
	}
	if len(rows) > exportMaxRows {
		rows = rows[:exportMaxRows]
	}
	return rows, nil
}

func renderWorkbook(screen string, rows []domain.TransferRow) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(screen)
	if err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range []string{"ID", "Date", "Amount", "From", "To", "Kind", "Description"} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.Date.Format(time.RFC3339))
		row.AddCell().SetString(r.Amount.String())
		row.AddCell().SetString(r.From)
		row.AddCell().SetString(r.To)
		row.AddCell().SetString(r.Kind)
		row.AddCell().SetString(r.Description)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *ExportProcessor) setStatus(ctx context.Context, status ExportStatus) {
	status.UpdatedAt = time.Now().UTC()
	if err := p.cache.SetWithTTL(ctx, ExportStatusKey(status.JobID), status, exportStatusTTL); err != nil {
		p.logger.WarnContext(ctx, "failed to record export status",
			slog.String("job_id", status.JobID),
			slog.Any("error", err))
	}
}
