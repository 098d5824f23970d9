package recolte

import (
	"context"

	"github.com/hazyhaar/recolte/idgen"
	"github.com/hazyhaar/recolte/internal/store"
)

// recordIngest writes one ingest_log row for a pipeline result. Logging is
// best effort: a failed write never demotes or hides the result itself.
func (svc *Service) recordIngest(ctx context.Context, res *Result) {
	if res == nil {
		return
	}

	entry := &store.IngestLogEntry{
		ID:          idgen.New(),
		URLID:       res.URLID,
		URL:         res.URL,
		ContentHash: res.ContentHash,
		DurationMs:  res.Duration.Milliseconds(),
	}
	switch {
	case res.Skipped:
		entry.Status = "skipped"
	case res.Success:
		entry.Status = "success"
	default:
		entry.Status = "failure"
	}
	if res.Error != nil {
		entry.Stage = string(res.Error.Stage)
		entry.ErrorCode = string(res.Error.Code)
		entry.ErrorMessage = res.Error.Message
	}

	if err := svc.store.InsertIngestLog(ctx, entry); err != nil {
		svc.logger.Warn("recolte: ingest log write failed", "url", res.URL, "error", err)
	}
}
