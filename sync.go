package omnisync

import (
	"context"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/sources"
	"github.com/agentstation/omnisync/pkg/sync"
)

// Sync runs one reconciliation pass of source against Omni. Hooks fire for
// every applied write, including those of a run that failed part way.
func (o *omnisync) Sync(ctx context.Context, source sources.Source, opts ...sync.Option) (*sync.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if source == nil {
		return nil, &errors.ValidationError{Field: "source", Message: "source cannot be nil"}
	}

	syncer := sync.New(source, o.client, o.config.syncOptions...).WithDiffer(o.differ())

	result, err := syncer.Run(ctx, opts...)
	if result == nil {
		return nil, err
	}

	o.hooks.triggerApplied(result)

	if result.HasChanges() {
		logging.FromContext(ctx).Debug().
			Int("applied", len(result.Applied)).
			Bool("dry_run", result.DryRun).
			Msg("sync hooks triggered")
	}

	return result, err
}
