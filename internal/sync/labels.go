package sync

import (
	"context"
	"fmt"

	"github.com/linkrelay/linkrelay/internal/model"
)

// RefreshLabels fetches the server's label catalogue and merges it into the
// local cache. A merge failure is logged and swallowed; the fetched labels
// are still returned so callers can display them.
func (o *Orchestrator) RefreshLabels(ctx context.Context) ([]model.Label, error) {
	labels, err := o.remote.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching labels: %w", err)
	}

	if added, err := o.store.UpsertLabels(ctx, labels); err != nil {
		o.log.Error("caching labels locally", "count", len(labels), "error", err)
	} else if added > 0 {
		o.log.Debug("cached new labels", "added", added)
	}
	return labels, nil
}
