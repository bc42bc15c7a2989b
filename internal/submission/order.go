package submission

import (
	"photo-listing-portal/internal/domain"
)

// ResolveEffectiveOrder reconciles a proposal's photo id snapshot with the
// listing's live photos. Snapshot ids whose photos were deleted since the
// proposal are dropped; live photos the snapshot never saw are appended after
// the snapshot order, non-excluded ones first, each group keeping the live
// order. A nil snapshot yields the live order unchanged.
func ResolveEffectiveOrder(snapshot []string, photos []domain.Photo) []domain.Photo {
	if len(snapshot) == 0 {
		return photos
	}

	live := make(map[string]*domain.Photo, len(photos))
	for i := range photos {
		live[photos[i].ID] = &photos[i]
	}

	result := make([]domain.Photo, 0, len(photos))
	inSnapshot := make(map[string]bool, len(snapshot))
	for _, id := range snapshot {
		inSnapshot[id] = true
		if p, ok := live[id]; ok {
			result = append(result, *p)
		}
	}

	for _, p := range photos {
		if !inSnapshot[p.ID] && !p.Excluded {
			result = append(result, p)
		}
	}
	for _, p := range photos {
		if !inSnapshot[p.ID] && p.Excluded {
			result = append(result, p)
		}
	}
	return result
}
