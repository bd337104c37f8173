// internal/types/interfaces.go
package types

import (
	"context"
)

type Worklist interface {
	Pending(ctx context.Context) ([]WorkItem, error)
	Complete(ctx context.Context, item WorkItem, reference string) error
	Describe(ctx context.Context) (*WorklistInfo, error)
}

type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (*Blob, error)
	Find(ctx context.Context, name string) (*Blob, error)
	Delete(ctx context.Context, name string) (int, error)
	List(ctx context.Context) ([]*Blob, error)
	Describe(ctx context.Context) (*StoreInfo, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

type Notifier interface {
	Notify(ctx context.Context, summary *BatchSummary) error
}
