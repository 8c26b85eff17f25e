package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/services"
	"github.com/sirupsen/logrus"
)

// ReportStuckRedemptions logs codes left in using past their time window.
// It never changes their state; an admin decides what happens next.
func ReportStuckRedemptions(registry *services.CodeRegistry, grace time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		stuck, err := registry.StuckRedemptions(ctx, grace)
		if err != nil {
			logger.Log.WithError(err).Error("checking stuck redemptions failed")
			return
		}
		for _, tc := range stuck {
			logger.Log.WithFields(logrus.Fields{
				"code":     tc.Code,
				"batch_id": tc.BatchID,
				"used_by":  tc.UsedBy,
				"used_at":  tc.UsedAt,
			}).Warn("test code still in use without a result")
		}
	}
}
