package tracker

import (
	"errors"
	"strings"

	"favorites-tracker/internal/domain"
)

// ErrEmptyPool means a random pick had no eligible candidates. This is a
// normal advisory outcome, not a failure.
var ErrEmptyPool = errors.New("no eligible candidates")

// FilledFavorite is one eligible triple for PickRandomFilledFavorite.
type FilledFavorite struct {
	Category domain.Category `json:"category"`
	Person   domain.Person   `json:"person"`
	Value    string          `json:"value"`
}

// PickRandomCategory picks uniformly among the active categories.
func (t *Tracker) PickRandomCategory() (domain.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pool := activeCategoriesLocked(t.categories)
	if len(pool) == 0 {
		return domain.Category{}, ErrEmptyPool
	}
	return pool[t.rng.IntN(len(pool))], nil
}

// PickRandomPerson picks uniformly among the active people.
func (t *Tracker) PickRandomPerson() (domain.Person, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pool := activePeopleLocked(t.people)
	if len(pool) == 0 {
		return domain.Person{}, ErrEmptyPool
	}
	return pool[t.rng.IntN(len(pool))], nil
}

// PickRandomFilledFavorite picks uniformly among all triples where both the
// category and the person are active and the trimmed value is non-empty.
// The pool iterates categories then people in collection order, so a seeded
// source yields reproducible picks.
func (t *Tracker) PickRandomFilledFavorite() (FilledFavorite, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pool []FilledFavorite
	for _, c := range t.categories {
		if c.Archived {
			continue
		}
		byPerson := t.favorites[c.ID]
		if byPerson == nil {
			continue
		}
		for _, p := range t.people {
			if p.Archived {
				continue
			}
			value, ok := byPerson[p.ID]
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			pool = append(pool, FilledFavorite{Category: c, Person: p, Value: value})
		}
	}

	if len(pool) == 0 {
		return FilledFavorite{}, ErrEmptyPool
	}
	return pool[t.rng.IntN(len(pool))], nil
}
