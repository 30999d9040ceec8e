package app

import (
	"context"
	"fmt"
	"strings"

	"arview/internal/util"
	"arview/pkg/domain"
	"arview/pkg/queue"
	"arview/pkg/storage"
)

// CleanupHandler processes jobs from the cleanup queue.
func (a *App) CleanupHandler() queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		switch job.Kind {
		case JobDeleteObject:
			if err := a.objects.Delete(ctx, job.Target); err != nil {
				return fmt.Errorf("delete %s: %w", job.Target, err)
			}
			util.LoggerFromContext(ctx).Info("asset deleted", "key", job.Target, "job_id", job.ID)
			return nil
		default:
			util.LoggerFromContext(ctx).Warn("unknown cleanup job", "kind", job.Kind, "job_id", job.ID)
			return nil
		}
	}
}

// assetKeys lists the stored objects an item references. URLs outside the
// public asset host or the merchant's own prefix are skipped.
func (a *App) assetKeys(item domain.Item) []string {
	var keys []string
	for _, u := range []string{item.ModelURL, item.USDZURL, item.ThumbnailURL} {
		key, ok := storage.KeyFromPublicURL(a.publicAssetURL, u)
		if !ok || !strings.HasPrefix(key, item.MerchantID+"/") {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (a *App) scheduleAssetCleanup(ctx context.Context, item domain.Item) {
	logger := util.LoggerFromContext(ctx)
	for _, key := range a.assetKeys(item) {
		if a.cleanup != nil {
			job, err := a.cleanup.Enqueue(ctx, JobDeleteObject, key)
			if err == nil {
				logger.Info("asset cleanup queued", "key", key, "job_id", job.ID)
				continue
			}
			logger.Warn("enqueue asset cleanup failed, deleting inline", "key", key, "error", err)
		}
		if err := a.objects.Delete(ctx, key); err != nil {
			logger.Warn("delete asset failed", "key", key, "item_id", item.ID, "error", err)
		}
	}
}
