package workflow

import (
	"fmt"

	"github.com/photoproos/studio_backend/config"
	"gorm.io/gorm"
)

const recurringRunnerLockName = "recurring-runner"

var ErrRunnerLockNotAcquired = fmt.Errorf("could not acquire %s lock", recurringRunnerLockName)

// AcquireRecurringRunnerLock keeps one recurring run active across instances using a MySQL advisory lock.
// GET_LOCK is connection-scoped, so tx must be pinned to one connection (a transaction or db.Connection).
// Other dialects have no advisory locks and rely on the per-agreement row locks alone.
func AcquireRecurringRunnerLock(tx *gorm.DB, timeoutSeconds int) error {
	if !config.IsMySQL(tx) {
		return nil
	}
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", recurringRunnerLockName, timeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return ErrRunnerLockNotAcquired
	}
	return nil
}

func ReleaseRecurringRunnerLock(tx *gorm.DB) {
	if !config.IsMySQL(tx) {
		return
	}
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", recurringRunnerLockName).Scan(&_ok).Error
}
