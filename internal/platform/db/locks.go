package db

import "gorm.io/gorm"

// AdvisoryXactLock serializes work per key inside the enclosing transaction.
// The lock is keyed by a stable 64-bit hash of key and is released by postgres
// at commit or rollback; it is never held across an external call.
//
// Non-postgres dialects (the sqlite test driver) have no advisory locks; there
// the single-writer engine already serializes, so this is a no-op.
func AdvisoryXactLock(tx *gorm.DB, key string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}
