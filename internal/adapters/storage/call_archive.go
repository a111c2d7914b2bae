package storage

import (
	"context"
	"fmt"
	"time"
)

// CallArchive stores raw call event payloads in object storage, one
// object per delivery, keyed by date and call ID.
type CallArchive struct {
	svc    StorageService
	bucket string
}

// NewCallArchive creates a call event archive on the given bucket.
func NewCallArchive(svc StorageService, bucket string) *CallArchive {
	return &CallArchive{svc: svc, bucket: bucket}
}

// ArchiveCallEvent stores a single raw event payload.
func (a *CallArchive) ArchiveCallEvent(ctx context.Context, callID, eventType string, payload []byte) error {
	now := time.Now().UTC()
	key := fmt.Sprintf("call-events/%s/%s/%s_%d.json",
		now.Format("2006/01/02"), callID, eventType, now.UnixNano())
	return a.svc.PutObject(ctx, a.bucket, key, "application/json", payload)
}
