// Package tracker owns the in-memory favorites model: people, categories,
// the sparse favorites matrix and the selected-category cursor. Every
// mutation persists the affected collections through the key-value store
// and notifies subscribers; persistence failures are logged and never
// surface to callers.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"favorites-tracker/internal/domain"
	"favorites-tracker/internal/storage"
)

// Rand is the injected randomness source for pick operations.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Change describes a completed mutation, for subscribers (metrics, renderers).
type Change struct {
	Op string
}

// Listener receives change notifications. Listeners are invoked synchronously
// after the mutation persists and must not call back into the Tracker.
type Listener func(Change)

// Tracker is the single owner of all favorites state. All operations are
// atomic: the mutex keeps concurrent HTTP handlers from observing a
// half-applied cascade.
type Tracker struct {
	mu    sync.Mutex
	store storage.KVStorage
	newID func() string
	rng   Rand

	people     []domain.Person
	categories []domain.Category
	favorites  domain.Favorites
	selected   string // id of the selected active category, or ""

	listeners []Listener
}

type Option func(*Tracker)

// WithIDFunc overrides id generation (deterministic ids in tests).
func WithIDFunc(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// WithRand overrides the randomness source (seeded source in tests).
func WithRand(r Rand) Option {
	return func(t *Tracker) { t.rng = r }
}

// New loads state from the store. A missing people/favorites key starts
// empty; a missing categories key seeds the example categories. Malformed
// stored JSON resets that collection to its default.
func New(ctx context.Context, store storage.KVStorage, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		newID:     uuid.NewString,
		rng:       defaultRand{},
		favorites: domain.Favorites{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.load(ctx)
	return t
}

type defaultRand struct{}

func (defaultRand) IntN(n int) int { return rand.IntN(n) }

// seedCategories are created on first run, when no categories key exists.
var seedCategories = []domain.Category{
	{ID: "candy", Name: "Candy"},
	{ID: "ice-cream", Name: "Ice Cream"},
	{ID: "snack", Name: "Snack"},
	{ID: "fast-food", Name: "Fast Food"},
	{ID: "movie", Name: "Movie"},
	{ID: "tv-show", Name: "TV Show"},
}

func (t *Tracker) load(ctx context.Context) {
	t.people = loadCollection(ctx, t.store, storage.KeyPeople, []domain.Person{})

	// nil doubles as the "seed the defaults" sentinel: both a missing key
	// and malformed stored JSON recover to the example categories.
	t.categories = loadCollection[[]domain.Category](ctx, t.store, storage.KeyCategories, nil)
	if t.categories == nil {
		t.categories = append([]domain.Category(nil), seedCategories...)
		t.persist(ctx, storage.KeyCategories)
	}

	favs := loadCollection(ctx, t.store, storage.KeyFavorites, domain.Favorites{})
	if favs == nil {
		favs = domain.Favorites{}
	}
	t.favorites = favs

	t.normalizeSelection()
}

// loadCollection reads and parses one blob, falling back to def when the key
// is absent or the stored JSON is malformed.
func loadCollection[T any](ctx context.Context, store storage.KVStorage, key string, def T) T {
	raw, ok, err := store.Load(ctx, key)
	if err != nil {
		slog.Error("Failed to load collection, using default", "key", key, "error", err)
		return def
	}
	if !ok {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Error("Malformed persisted state, resetting collection", "key", key, "error", err)
		return def
	}
	return out
}

// persist writes the named collections. Storage failures are logged and
// swallowed: in-memory state stays authoritative and the caller proceeds.
func (t *Tracker) persist(ctx context.Context, keys ...string) {
	for _, key := range keys {
		var v any
		switch key {
		case storage.KeyPeople:
			v = t.people
		case storage.KeyCategories:
			v = t.categories
		case storage.KeyFavorites:
			v = t.favorites
		}
		raw, err := json.Marshal(v)
		if err != nil {
			slog.Error("Failed to marshal collection", "key", key, "error", err)
			continue
		}
		if err := t.store.Save(ctx, key, string(raw)); err != nil {
			slog.Error("Failed to persist collection", "key", key, "error", err)
		}
	}
}

// Subscribe registers a change listener.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) notify(op string) {
	for _, l := range t.listeners {
		l(Change{Op: op})
	}
}

// normalizeSelection keeps the cursor invariant: if any active category
// exists the cursor points at one of them, otherwise it is empty.
func (t *Tracker) normalizeSelection() {
	for _, c := range t.categories {
		if c.ID == t.selected && !c.Archived {
			return
		}
	}
	t.selected = ""
	for _, c := range t.categories {
		if !c.Archived {
			t.selected = c.ID
			return
		}
	}
}

// AddPerson appends a new active person and returns it.
func (t *Tracker) AddPerson(ctx context.Context, name string) domain.Person {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := domain.Person{ID: t.newID(), Name: name}
	t.people = append(t.people, p)
	t.persist(ctx, storage.KeyPeople)
	t.notify("add_person")
	slog.Info("Person added", "person_id", p.ID, "name", p.Name)
	return p
}

// AddCategory appends a new active category and returns it. The cursor is
// recomputed, so the first category added to an empty list becomes selected.
func (t *Tracker) AddCategory(ctx context.Context, name string) domain.Category {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := domain.Category{ID: t.newID(), Name: name}
	t.categories = append(t.categories, c)
	t.normalizeSelection()
	t.persist(ctx, storage.KeyCategories)
	t.notify("add_category")
	slog.Info("Category added", "category_id", c.ID, "name", c.Name)
	return c
}

func (t *Tracker) setPersonArchived(ctx context.Context, id string, archived bool, op string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.people {
		if t.people[i].ID == id {
			t.people[i].Archived = archived
			t.persist(ctx, storage.KeyPeople)
			t.notify(op)
			return true
		}
	}
	return false
}

// ArchivePerson hides the person from active lists and random pools.
// Unknown ids are a silent no-op.
func (t *Tracker) ArchivePerson(ctx context.Context, id string) bool {
	return t.setPersonArchived(ctx, id, true, "archive_person")
}

// RestorePerson brings an archived person back.
func (t *Tracker) RestorePerson(ctx context.Context, id string) bool {
	return t.setPersonArchived(ctx, id, false, "restore_person")
}

func (t *Tracker) setCategoryArchived(ctx context.Context, id string, archived bool, op string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.categories {
		if t.categories[i].ID == id {
			t.categories[i].Archived = archived
			t.normalizeSelection()
			t.persist(ctx, storage.KeyCategories)
			t.notify(op)
			return true
		}
	}
	return false
}

// ArchiveCategory hides the category; if it was selected, selection falls
// back to the first remaining active category.
func (t *Tracker) ArchiveCategory(ctx context.Context, id string) bool {
	return t.setCategoryArchived(ctx, id, true, "archive_category")
}

// RestoreCategory brings an archived category back.
func (t *Tracker) RestoreCategory(ctx context.Context, id string) bool {
	return t.setCategoryArchived(ctx, id, false, "restore_category")
}

// DeletePerson removes the person and strips their id from every category's
// favorite sub-map. The cascade completes before anything persists, so
// stored favorites never reference a missing person.
func (t *Tracker) DeletePerson(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.people {
		if t.people[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	t.people = append(t.people[:idx], t.people[idx+1:]...)
	for _, byPerson := range t.favorites {
		delete(byPerson, id)
	}
	t.persist(ctx, storage.KeyPeople, storage.KeyFavorites)
	t.notify("delete_person")
	slog.Info("Person deleted", "person_id", id)
	return true
}

// DeleteCategory removes the category and its entire favorite sub-map,
// reassigning the selection cursor if needed.
func (t *Tracker) DeleteCategory(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.categories {
		if t.categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	t.categories = append(t.categories[:idx], t.categories[idx+1:]...)
	delete(t.favorites, id)
	t.normalizeSelection()
	t.persist(ctx, storage.KeyCategories, storage.KeyFavorites)
	t.notify("delete_category")
	slog.Info("Category deleted", "category_id", id)
	return true
}

// SetFavorite upserts the free-text value for a (category, person) pair.
// An empty string is a valid explicit value. Unknown ids are a silent no-op
// so the stored matrix never references a missing entity.
func (t *Tracker) SetFavorite(ctx context.Context, categoryID, personID, value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasCategory(categoryID) || !t.hasPerson(personID) {
		return false
	}

	// The nil check (rather than the comma-ok form) also repairs sub-maps
	// imported as an explicit JSON null, which are present but nil.
	byPerson := t.favorites[categoryID]
	if byPerson == nil {
		byPerson = map[string]string{}
		t.favorites[categoryID] = byPerson
	}
	byPerson[personID] = value
	t.persist(ctx, storage.KeyFavorites)
	t.notify("set_favorite")
	return true
}

func (t *Tracker) hasCategory(id string) bool {
	for _, c := range t.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (t *Tracker) hasPerson(id string) bool {
	for _, p := range t.people {
		if p.ID == id {
			return true
		}
	}
	return false
}

// SelectCategory moves the cursor to an active category.
func (t *Tracker) SelectCategory(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.categories {
		if c.ID == id && !c.Archived {
			t.selected = id
			t.notify("select_category")
			return true
		}
	}
	return false
}

// SelectedCategory returns the category under the cursor, if any.
func (t *Tracker) SelectedCategory() (domain.Category, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.categories {
		if c.ID == t.selected && !c.Archived {
			return c, true
		}
	}
	return domain.Category{}, false
}

// People returns a copy of the full people list, insertion order.
func (t *Tracker) People() []domain.Person {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Person(nil), t.people...)
}

// Categories returns a copy of the full category list, insertion order.
func (t *Tracker) Categories() []domain.Category {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Category(nil), t.categories...)
}

// ActivePeople returns the non-archived people, insertion order.
func (t *Tracker) ActivePeople() []domain.Person {
	t.mu.Lock()
	defer t.mu.Unlock()
	return activePeopleLocked(t.people)
}

// ActiveCategories returns the non-archived categories, insertion order.
func (t *Tracker) ActiveCategories() []domain.Category {
	t.mu.Lock()
	defer t.mu.Unlock()
	return activeCategoriesLocked(t.categories)
}

func activePeopleLocked(people []domain.Person) []domain.Person {
	out := []domain.Person{}
	for _, p := range people {
		if !p.Archived {
			out = append(out, p)
		}
	}
	return out
}

func activeCategoriesLocked(categories []domain.Category) []domain.Category {
	out := []domain.Category{}
	for _, c := range categories {
		if !c.Archived {
			out = append(out, c)
		}
	}
	return out
}

// Favorites returns a deep copy of the whole matrix.
func (t *Tracker) Favorites() domain.Favorites {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.favorites.Clone()
}

// FavoritesFor returns a copy of one category's sub-map (possibly empty).
func (t *Tracker) FavoritesFor(categoryID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := map[string]string{}
	for personID, value := range t.favorites[categoryID] {
		out[personID] = value
	}
	return out
}

// Favorite returns the stored value for a pair; ok=false means the entry was
// never set, which renders the same as empty but is a distinct state.
func (t *Tracker) Favorite(categoryID, personID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok := t.favorites[categoryID][personID]
	return value, ok
}
