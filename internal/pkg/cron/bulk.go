package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
)

const RecoverBulkOperationsJob = "recover_interrupted_bulk_operations"

// BulkJobs holds the maintenance jobs for bulk salary operations.
type BulkJobs struct {
	bulkService bulk.BulkService
	staleAfter  time.Duration
}

func NewBulkJobs(bulkService bulk.BulkService, staleAfter time.Duration) *BulkJobs {
	return &BulkJobs{bulkService: bulkService, staleAfter: staleAfter}
}

func (j *BulkJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob(Job{
		Name:     RecoverBulkOperationsJob,
		Interval: interval,
		Timeout:  interval,
		Fn:       j.RecoverInterrupted,
	})
}

// RecoverInterrupted finishes operations stuck in running for longer than staleAfter.
func (j *BulkJobs) RecoverInterrupted(ctx context.Context) error {
	recovered, err := j.bulkService.RecoverInterrupted(ctx, j.staleAfter)
	if err != nil {
		return err
	}
	if len(recovered) > 0 {
		slog.Info("Interrupted bulk operations recovered", "count", len(recovered))
	}
	return nil
}
