package repository

import (
	"context"
	"errors"
	"fmt"

	"crates/model"

	"gorm.io/gorm"
)

// CollectionRepository stores collections and the albums inside them.
// Every method is scoped to the owning user. Lookups return nil, nil when
// nothing matches.
type CollectionRepository interface {
	ListCollections(ctx context.Context, userID int64) ([]model.Collection, error)
	GetCollection(ctx context.Context, userID int64, collectionID string) (*model.Collection, error)
	GetOrCreateDefault(ctx context.Context, userID int64, fresh *model.Collection) (*model.Collection, error)
	CreateCollection(ctx context.Context, collection *model.Collection) error
	UpdateCollection(ctx context.Context, userID int64, collectionID string, fields map[string]interface{}) (bool, error)
	DeleteCollection(ctx context.Context, userID int64, collectionID string) (bool, error)

	FindAlbumByDiscogsID(ctx context.Context, userID, discogsID int64) (*model.Album, error)
	InsertAlbum(ctx context.Context, album *model.Album) error
	GetAlbum(ctx context.Context, userID int64, albumID string) (*model.Album, error)
	UpdateAlbumFields(ctx context.Context, userID int64, albumID string, patch *model.Album, fields []string) (bool, error)
	ReplaceTracks(ctx context.Context, userID int64, albumID string, tracks []model.Track) (bool, error)
	SetCoverPath(ctx context.Context, albumID, coverPath string) error
	DeleteAlbum(ctx context.Context, userID int64, albumID string) (bool, error)
}

type gormCollectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a CollectionRepository backed by GORM.
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &gormCollectionRepository{db: db}
}

func preloadRecords(db *gorm.DB) *gorm.DB {
	return db.Order("added_at ASC, created_at ASC")
}

func (r *gormCollectionRepository) ListCollections(ctx context.Context, userID int64) ([]model.Collection, error) {
	var collections []model.Collection
	err := r.db.WithContext(ctx).
		Preload("Records", preloadRecords).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections for user %d: %w", userID, err)
	}
	return collections, nil
}

func (r *gormCollectionRepository) GetCollection(ctx context.Context, userID int64, collectionID string) (*model.Collection, error) {
	var collection model.Collection
	err := r.db.WithContext(ctx).
		Preload("Records", preloadRecords).
		Where("id = ? AND user_id = ?", collectionID, userID).
		First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionID, err)
	}
	return &collection, nil
}

// GetOrCreateDefault returns the user's default collection, inserting
// fresh when there is none. A concurrent insert that wins the unique index
// is read back instead.
func (r *gormCollectionRepository) GetOrCreateDefault(ctx context.Context, userID int64, fresh *model.Collection) (*model.Collection, error) {
	existing, err := r.findDefault(ctx, userID)
	if err != nil || existing != nil {
		return existing, err
	}

	fresh.UserID = userID
	fresh.DefaultFor = &userID
	err = r.db.WithContext(ctx).Omit("Records").Create(fresh).Error
	if err == nil {
		return fresh, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to create default collection for user %d: %w", userID, err)
	}

	existing, err = r.findDefault(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("default collection for user %d vanished after conflict", userID)
	}
	return existing, nil
}

func (r *gormCollectionRepository) findDefault(ctx context.Context, userID int64) (*model.Collection, error) {
	var c model.Collection
	err := r.db.WithContext(ctx).Where("default_for = ?", userID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default collection for user %d: %w", userID, err)
	}
	return &c, nil
}

// CreateCollection inserts the collection and its initial records in one
// transaction. A duplicate Discogs id rolls back everything.
func (r *gormCollectionRepository) CreateCollection(ctx context.Context, collection *model.Collection) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Records").Create(collection).Error; err != nil {
			return err
		}
		for i := range collection.Records {
			collection.Records[i].CollectionID = collection.ID
			collection.Records[i].UserID = collection.UserID
			if err := tx.Create(&collection.Records[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAlbum
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *gormCollectionRepository) UpdateCollection(ctx context.Context, userID int64, collectionID string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Collection{}).
		Where("id = ? AND user_id = ?", collectionID, userID).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update collection %s: %w", collectionID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteCollection removes the collection together with its albums.
func (r *gormCollectionRepository) DeleteCollection(ctx context.Context, userID int64, collectionID string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ? AND user_id = ?", collectionID, userID).Delete(&model.Album{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", collectionID, userID).Delete(&model.Collection{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete collection %s: %w", collectionID, err)
	}
	return deleted, nil
}

func (r *gormCollectionRepository) FindAlbumByDiscogsID(ctx context.Context, userID, discogsID int64) (*model.Album, error) {
	return r.firstAlbum(ctx, "user_id = ? AND discogs_id = ?", userID, discogsID)
}

func (r *gormCollectionRepository) GetAlbum(ctx context.Context, userID int64, albumID string) (*model.Album, error) {
	return r.firstAlbum(ctx, "user_id = ? AND id = ?", userID, albumID)
}

func (r *gormCollectionRepository) firstAlbum(ctx context.Context, query string, args ...interface{}) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).Where(query, args...).First(&album).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query album: %w", err)
	}
	return &album, nil
}

// InsertAlbum stores a new album. The (user_id, discogs_id) unique index
// turns a racing duplicate into ErrDuplicateAlbum.
func (r *gormCollectionRepository) InsertAlbum(ctx context.Context, album *model.Album) error {
	if err := r.db.WithContext(ctx).Create(album).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAlbum
		}
		return fmt.Errorf("failed to insert album: %w", err)
	}
	return nil
}

// UpdateAlbumFields writes the named struct fields of patch, zero values
// included.
func (r *gormCollectionRepository) UpdateAlbumFields(ctx context.Context, userID int64, albumID string, patch *model.Album, fields []string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Album{}).
		Where("id = ? AND user_id = ?", albumID, userID).
		Select(fields).
		Updates(patch)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update album %s: %w", albumID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormCollectionRepository) ReplaceTracks(ctx context.Context, userID int64, albumID string, tracks []model.Track) (bool, error) {
	return r.UpdateAlbumFields(ctx, userID, albumID, &model.Album{Tracks: tracks}, []string{"Tracks"})
}

func (r *gormCollectionRepository) SetCoverPath(ctx context.Context, albumID, coverPath string) error {
	err := r.db.WithContext(ctx).Model(&model.Album{}).
		Where("id = ?", albumID).
		Update("cover_path", coverPath).Error
	if err != nil {
		return fmt.Errorf("failed to set cover path for album %s: %w", albumID, err)
	}
	return nil
}

func (r *gormCollectionRepository) DeleteAlbum(ctx context.Context, userID int64, albumID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", albumID, userID).Delete(&model.Album{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete album %s: %w", albumID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
