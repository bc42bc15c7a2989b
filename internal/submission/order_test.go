package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"photo-listing-portal/internal/domain"
)

func photo(id string, excluded bool) domain.Photo {
	return domain.Photo{ID: id, Excluded: excluded}
}

func ids(photos []domain.Photo) []string {
	result := make([]string, 0, len(photos))
	for _, p := range photos {
		result = append(result, p.ID)
	}
	return result
}

func TestResolveEffectiveOrder_NilSnapshotKeepsLiveOrder(t *testing.T) {
	live := []domain.Photo{photo("a", false), photo("b", false)}

	result := ResolveEffectiveOrder(nil, live)

	assert.Equal(t, []string{"a", "b"}, ids(result))
}

func TestResolveEffectiveOrder_SnapshotOrderWins(t *testing.T) {
	live := []domain.Photo{photo("a", false), photo("b", false), photo("c", false)}

	result := ResolveEffectiveOrder([]string{"c", "a", "b"}, live)

	assert.Equal(t, []string{"c", "a", "b"}, ids(result))
}

func TestResolveEffectiveOrder_DeletedSnapshotIDsDropped(t *testing.T) {
	live := []domain.Photo{photo("a", false), photo("b", false)}

	result := ResolveEffectiveOrder([]string{"gone", "b", "a"}, live)

	assert.Equal(t, []string{"b", "a"}, ids(result))
}

func TestResolveEffectiveOrder_OrphansAppendedActiveFirst(t *testing.T) {
	// d and f arrived after the snapshot was taken; e is excluded
	live := []domain.Photo{
		photo("a", false),
		photo("d", false),
		photo("e", true),
		photo("f", false),
	}

	result := ResolveEffectiveOrder([]string{"a"}, live)

	assert.Equal(t, []string{"a", "d", "f", "e"}, ids(result))
}

func TestResolveEffectiveOrder_ExcludedInSnapshotKeepsPosition(t *testing.T) {
	// an excluded photo explicitly placed by the snapshot stays where placed
	live := []domain.Photo{photo("a", false), photo("b", true)}

	result := ResolveEffectiveOrder([]string{"b", "a"}, live)

	assert.Equal(t, []string{"b", "a"}, ids(result))
}
