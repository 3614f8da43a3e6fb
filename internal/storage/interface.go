package storage

import "context"

// ArchiveStore defines the blob operations used to export the alert trail
type ArchiveStore interface {
	Store(ctx context.Context, filename string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, filename string) error
}
