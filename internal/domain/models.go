package domain

// Person is someone whose favorites are tracked. Archived people are hidden
// from selection and random pools but kept around for restore.
type Person struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// Category is one favorites column (e.g. "Candy", "Movie").
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// Favorites maps category id -> person id -> free-text favorite value.
// The matrix is sparse: a missing entry means "not filled in yet", which is
// distinct from an explicitly stored empty string.
type Favorites map[string]map[string]string

// Clone returns a deep copy so callers can hand out favorites without
// exposing internal maps.
func (f Favorites) Clone() Favorites {
	out := make(Favorites, len(f))
	for catID, byPerson := range f {
		sub := make(map[string]string, len(byPerson))
		for personID, value := range byPerson {
			sub[personID] = value
		}
		out[catID] = sub
	}
	return out
}

// Snapshot is the backup document: the three collections verbatim.
// This is the only wire format for backup and restore.
type Snapshot struct {
	People     []Person   `json:"people"`
	Categories []Category `json:"categories"`
	Favorites  Favorites  `json:"favorites"`
}
