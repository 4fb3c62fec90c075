package syncer

import (
	"sort"

	"github.com/mfloris/doctran/internal/api"
)

// Move returns a copy of ids with the element at index from relocated to
// index to; the remaining elements keep their relative order. Out-of-range
// indices return the input unchanged.
func Move(ids []string, from, to int) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	id := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]string{id}, out[to:]...)...)
	return out
}

// MoveUp moves the element at index i one position toward the front.
func MoveUp(ids []string, i int) []string {
	return Move(ids, i, i-1)
}

// MoveDown moves the element at index i one position toward the back.
func MoveDown(ids []string, i int) []string {
	return Move(ids, i, i+1)
}

func sortGrants(grants []api.GroupProviderAccess) {
	sort.SliceStable(grants, func(i, j int) bool {
		return grants[i].SortOrder < grants[j].SortOrder
	})
}
