// Package storage defines the flat key-value persistence contract the
// tracker writes its JSON blobs through.
package storage

import "context"

// Persisted keys. Absence of people/favorites means "start empty"; absence
// of categories means "seed the example categories".
const (
	KeyPeople     = "people"
	KeyCategories = "categories"
	KeyFavorites  = "favorites"
	KeyLastBackup = "last_backup"
)

// KVStorage is the persistent store: three JSON blobs plus the last-backup
// timestamp, under a flat key namespace. A missing key is not an error.
type KVStorage interface {
	// Load returns the stored value for key, with ok=false when the key
	// has never been written.
	Load(ctx context.Context, key string) (value string, ok bool, err error)

	// Save upserts the value for key.
	Save(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
