// Package lock provides non-blocking exclusive locks keyed by string.
// TryLock never waits: a held key fails immediately with ErrLocked so that
// callers can surface a concurrency conflict instead of queueing.
package lock

import (
	"context"
	"errors"
)

var ErrLocked = errors.New("lock is held by another operation")

// Locker acquires exclusive locks. The returned release func is idempotent.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), err error)
}

// PeriodKey is the lock key guarding a payroll period's calculate/finalize.
func PeriodKey(periodID string) string {
	return "payroll:period:" + periodID
}

// BulkOperationKey is the lock key guarding execution of a bulk operation.
func BulkOperationKey(operationID string) string {
	return "bulk:operation:" + operationID
}
