package store

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const projectLockStmt = "SELECT pg_advisory_xact_lock(%d);"

// ProjectLock serializes the commits of planning passes on one project across
// replicas. The lock is a transaction scoped postgres advisory lock, released on
// commit or rollback. Other dialects have no cross process lock: the call only
// checks that a transaction is open.
type ProjectLock struct {
	db *gorm.DB
}

func NewProjectLock(db *gorm.DB) *ProjectLock {
	return &ProjectLock{db: db}
}

func (l *ProjectLock) Acquire(ctx context.Context, projectID uuid.UUID) error {
	tx := FromContext(ctx)
	if tx == nil {
		return fmt.Errorf("advisory xact lock requires an active transaction in context")
	}
	if !isPostgres(tx) {
		return nil
	}

	if err := tx.Exec(fmt.Sprintf(projectLockStmt, projectLockID(projectID))).Error; err != nil {
		return fmt.Errorf("lock query failed: %w", err)
	}
	return nil
}

func projectLockID(projectID uuid.UUID) int32 {
	h := fnv.New32a()
	h.Write([]byte("project:" + projectID.String()))
	return int32(h.Sum32())
}
