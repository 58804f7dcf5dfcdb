// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/cyclosproject/searchd/internal/adapters/storage"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

// TaskTypeCleanup is the periodic task pruning expired export artifacts.
const TaskTypeCleanup = "cleanup:artifacts"

// CleanupProcessor removes export artifacts whose status records have
// expired. Status records carry the retention TTL; once redis forgets
// a job, its spreadsheet in the artifact store is garbage.
type CleanupProcessor struct {
	store  storage.ArtifactStore
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(store storage.ArtifactStore, cache ports.CacheRepository, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupArtifacts deletes artifacts without a live status record.
func (p *CleanupProcessor) CleanupArtifacts(ctx context.Context, t *asynq.Task) error {
	keys, err := p.store.List(ctx, "exports/")
	if err != nil {
		return fmt.Errorf("failed to list export artifacts: %w", err)
	}

	var deleted int
	for _, key := range keys {
		jobID := jobIDFromArtifactKey(key)
		if jobID == "" {
			continue
		}

		alive, err := p.cache.Exists(ctx, ExportStatusKey(jobID))
		if err != nil {
			p.logger.WarnContext(ctx, "failed to check export status",
				slog.String("job_id", jobID),
				slog.Any("error", err))
			continue
		}
		if alive {
			continue
		}

		if err := p.store.Delete(ctx, key); err != nil {
			p.logger.WarnContext(ctx, "failed to delete expired artifact",
				slog.String("key", key),
				slog.Any("error", err))
			continue
		}
		deleted++
	}

	p.logger.InfoContext(ctx, "expired artifacts cleaned up",
		slog.Int("scanned", len(keys)),
		slog.Int("deleted", deleted))

	return nil
}

// jobIDFromArtifactKey extracts the job id from
// exports/<session>/<job>.xlsx.
func jobIDFromArtifactKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return ""
	}
	return strings.TrimSuffix(parts[2], ".xlsx")
}
