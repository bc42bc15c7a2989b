package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"photo-listing-portal/internal/domain"
)

// ListFilter narrows the listing list query. An empty UserID means all users
// (the caller is responsible for the read_all permission check).
type ListFilter struct {
	UserID string
	Status domain.ListingStatus
	Search string
	Limit  int
	Offset int
}

type ListMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	FindByID(ctx context.Context, id string) (*domain.Listing, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Listing, ListMeta, error)
	UpdateDetails(ctx context.Context, id string, fields map[string]any) error
	// UpdateStatusIf applies status=to only when the current status is one of
	// from, as a single conditional update. Returns false when the listing was
	// not in an eligible state, so concurrent transitions have at most one
	// winner.
	UpdateStatusIf(ctx context.Context, id string, from []domain.ListingStatus, to domain.ListingStatus) (bool, error)
	Delete(ctx context.Context, id string) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Listing, error)

	// CreatePhoto assigns the next sort order under a per-listing row lock, so
	// concurrent uploads never produce duplicate sort orders.
	CreatePhoto(ctx context.Context, photo *domain.Photo) error
	FindPhoto(ctx context.Context, photoID string) (*domain.Photo, error)
	TogglePhotoExcluded(ctx context.Context, listingID, photoID string) (*domain.Photo, error)
	DeletePhoto(ctx context.Context, listingID, photoID string) error
	// ReorderPhotos rewrites all sort orders in one transaction: listed ids get
	// positions 0..n-1, unlisted photos follow in their previous relative order.
	ReorderPhotos(ctx context.Context, listingID string, orderedIDs []string) error
}

type ListingRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new listing repository
func NewRepository(db *gorm.DB) ListingRepository {
	return &ListingRepositoryImpl{db: db}
}

func (r *ListingRepositoryImpl) Create(ctx context.Context, listing *domain.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *ListingRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.db.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *ListingRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]domain.Listing, ListMeta, error) {
	query := r.db.WithContext(ctx).Model(&domain.Listing{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("address ILIKE ? OR title ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, ListMeta{}, err
	}

	var listings []domain.Listing
	err := query.
		Preload("Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Order("updated_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&listings).Error

	return listings, ListMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset}, err
}

func (r *ListingRepositoryImpl) UpdateDetails(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ListingRepositoryImpl) UpdateStatusIf(ctx context.Context, id string, from []domain.ListingStatus, to domain.ListingStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Listing{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ListingRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Listing{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ListingRepositoryImpl) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Listing, error) {
	var listings []domain.Listing
	err := r.db.WithContext(ctx).
		Preload("Photos").
		Where("updated_at < ?", cutoff).
		Find(&listings).Error
	return listings, err
}

func (r *ListingRepositoryImpl) CreatePhoto(ctx context.Context, photo *domain.Photo) error {
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	photo.CreatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the listing row to serialize sort-order assignment per listing
		var listing domain.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", photo.ListingID).
			First(&listing).Error; err != nil {
			return err
		}

		var next int
		if err := tx.Model(&domain.Photo{}).
			Where("listing_id = ?", photo.ListingID).
			Select("COALESCE(MAX(sort_order) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		photo.SortOrder = next

		if err := tx.Create(photo).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Listing{}).
			Where("id = ?", photo.ListingID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *ListingRepositoryImpl) FindPhoto(ctx context.Context, photoID string) (*domain.Photo, error) {
	var photo domain.Photo
	err := r.db.WithContext(ctx).Where("id = ?", photoID).First(&photo).Error
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *ListingRepositoryImpl) TogglePhotoExcluded(ctx context.Context, listingID, photoID string) (*domain.Photo, error) {
	var photo domain.Photo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND listing_id = ?", photoID, listingID).
			First(&photo).Error; err != nil {
			return err
		}
		photo.Excluded = !photo.Excluded
		if err := tx.Model(&domain.Photo{}).
			Where("id = ?", photo.ID).
			Update("excluded", photo.Excluded).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Listing{}).
			Where("id = ?", listingID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *ListingRepositoryImpl) DeletePhoto(ctx context.Context, listingID, photoID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND listing_id = ?", photoID, listingID).Delete(&domain.Photo{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&domain.Listing{}).
			Where("id = ?", listingID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *ListingRepositoryImpl) ReorderPhotos(ctx context.Context, listingID string, orderedIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var photos []domain.Photo
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("listing_id = ?", listingID).
			Order("sort_order ASC, created_at ASC").
			Find(&photos).Error; err != nil {
			return err
		}

		position := make(map[string]int, len(orderedIDs))
		for i, id := range orderedIDs {
			position[id] = i
		}

		// unlisted photos keep their previous relative order after the listed ones
		next := len(orderedIDs)
		for _, p := range photos {
			pos, listed := position[p.ID]
			if !listed {
				pos = next
				next++
			}
			if err := tx.Model(&domain.Photo{}).
				Where("id = ?", p.ID).
				Update("sort_order", pos).Error; err != nil {
				return err
			}
		}

		return tx.Model(&domain.Listing{}).
			Where("id = ?", listingID).
			Update("updated_at", time.Now().UTC()).Error
	})
}
