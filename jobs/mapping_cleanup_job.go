package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/services"
)

const jobTimeout = time.Minute

// PurgeStaleMappings drops answer keys that outlived their test code.
func PurgeStaleMappings(store services.MappingStore) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		removed, err := store.PurgeExpired(ctx, time.Now().UTC())
		if err != nil {
			logger.Log.WithError(err).Error("purging stale answer keys failed")
			return
		}
		if removed > 0 {
			logger.Log.WithField("removed", removed).Info("purged stale answer keys")
		}
	}
}
