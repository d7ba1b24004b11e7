package favorites

import "github.com/roach88/shopstate/internal/model"

func indexOf(entries []model.FavoriteEntry, key string) int {
	for i, e := range entries {
		if e.Key() == key {
			return i
		}
	}
	return -1
}

func contains(entries []model.FavoriteEntry, key string) bool {
	return indexOf(entries, key) >= 0
}

func removeKey(entries []model.FavoriteEntry, key string) []model.FavoriteEntry {
	if !contains(entries, key) {
		return entries
	}
	out := make([]model.FavoriteEntry, 0, len(entries))
	for _, e := range entries {
		if e.Key() != key {
			out = append(out, e)
		}
	}
	return out
}

// union returns a followed by the entries of b whose keys are not in a.
// Keys are normalised and duplicates within either input are dropped.
func union(a, b []model.FavoriteEntry) []model.FavoriteEntry {
	out := make([]model.FavoriteEntry, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]model.FavoriteEntry{a, b} {
		for _, e := range list {
			k := e.Key()
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, model.FavoriteEntry{ProductID: k})
		}
	}
	return out
}

// Complement returns the local entries whose keys are missing from
// authoritative, which is exactly what a union merge has to insert.
func Complement(authoritative, local []model.FavoriteEntry) []model.FavoriteEntry {
	have := make(map[string]bool, len(authoritative))
	for _, e := range authoritative {
		have[e.Key()] = true
	}
	var out []model.FavoriteEntry
	for _, e := range union(nil, local) {
		if !have[e.Key()] {
			out = append(out, e)
		}
	}
	return out
}

// MergeUnion is the favorites merge policy as a pure function: the
// authoritative set followed by the local ids it lacks.
func MergeUnion(authoritative, local []model.FavoriteEntry) []model.FavoriteEntry {
	return union(authoritative, local)
}
