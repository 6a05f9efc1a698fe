package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"favorites-tracker/internal/domain"
	"favorites-tracker/internal/storage"
)

// ErrInvalidSnapshot means an import document failed the shape check;
// existing state is untouched.
var ErrInvalidSnapshot = errors.New("invalid snapshot document")

// ExportSnapshot returns the full backup document: deep copies of the three
// collections. Pure read; recording the backup timestamp is the caller's
// business (MarkBackedUp).
func (t *Tracker) ExportSnapshot() domain.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return domain.Snapshot{
		People:     append([]domain.Person{}, t.people...),
		Categories: append([]domain.Category{}, t.categories...),
		Favorites:  t.favorites.Clone(),
	}
}

// rawSnapshot defers field parsing so the shape check can tell "wrong kind"
// apart from "missing" per field.
type rawSnapshot struct {
	People     json.RawMessage `json:"people"`
	Categories json.RawMessage `json:"categories"`
	Favorites  json.RawMessage `json:"favorites"`
}

func isMissingOrNull(raw json.RawMessage) bool {
	return raw == nil || bytes.Equal(raw, []byte("null"))
}

// ImportSnapshot parses and validates doc, then wholesale-replaces all three
// collections, recomputes the selection cursor and persists. All-or-nothing:
// any validation failure leaves state exactly as it was.
//
// Only container shapes are checked (people/categories must be lists,
// favorites a mapping). Record internals pass through unvalidated, matching
// the lenient behavior backups have always had.
func (t *Tracker) ImportSnapshot(ctx context.Context, doc []byte) error {
	var raw rawSnapshot
	if err := json.Unmarshal(doc, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	// An explicitly-null field delivers the literal "null" bytes, which
	// would unmarshal into an empty collection below; both missing and null
	// fail the shape check so a bad document can never wipe state.
	if isMissingOrNull(raw.People) || isMissingOrNull(raw.Categories) || isMissingOrNull(raw.Favorites) {
		return fmt.Errorf("%w: people, categories and favorites are all required", ErrInvalidSnapshot)
	}

	var people []domain.Person
	if err := json.Unmarshal(raw.People, &people); err != nil {
		return fmt.Errorf("%w: people must be a list", ErrInvalidSnapshot)
	}
	var categories []domain.Category
	if err := json.Unmarshal(raw.Categories, &categories); err != nil {
		return fmt.Errorf("%w: categories must be a list", ErrInvalidSnapshot)
	}
	var favorites domain.Favorites
	if err := json.Unmarshal(raw.Favorites, &favorites); err != nil {
		return fmt.Errorf("%w: favorites must be a mapping", ErrInvalidSnapshot)
	}
	if people == nil {
		people = []domain.Person{}
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	if favorites == nil {
		favorites = domain.Favorites{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.people = people
	t.categories = categories
	t.favorites = favorites
	t.normalizeSelection()
	t.persist(ctx, storage.KeyPeople, storage.KeyCategories, storage.KeyFavorites)
	t.notify("import_snapshot")
	slog.Info("Snapshot imported",
		"people", len(people),
		"categories", len(categories),
	)
	return nil
}

// MarkBackedUp records "now" as the last successful backup time. Advisory
// only; a failed save just leaves the previous timestamp in place.
func (t *Tracker) MarkBackedUp(ctx context.Context) time.Time {
	now := time.Now().UTC()
	if err := t.store.Save(ctx, storage.KeyLastBackup, now.Format(time.RFC3339)); err != nil {
		slog.Error("Failed to persist backup timestamp", "error", err)
	}
	return now
}

// LastBackup returns the recorded backup time, ok=false if none exists.
func (t *Tracker) LastBackup(ctx context.Context) (time.Time, bool) {
	raw, ok, err := t.store.Load(ctx, storage.KeyLastBackup)
	if err != nil {
		slog.Error("Failed to load backup timestamp", "error", err)
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		slog.Error("Malformed backup timestamp", "value", raw, "error", err)
		return time.Time{}, false
	}
	return ts, true
}
