package repository

import (
	"context"
	"errors"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetAccount(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uint, update models.ProfileUpdate) (*models.User, error)
	LinkProvider(ctx context.Context, id uint, provider, providerID string) error
	LoadRelations(ctx context.Context, user *models.User) error
	Summaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Store
	log   *observability.RepoLogger
}

// NewUserRepository returns a UserRepository. store may be nil to disable caching.
func NewUserRepository(db *gorm.DB, store *cache.Store) UserRepository {
	return &userRepository{db: db, cache: store, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return conflictOr(err, "User already exists")
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID})
	return nil
}

// GetByID serves the profile record through the cache. The cached copy omits
// credential fields, so callers that need them must use GetByEmail.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAccount reads the full record from the database, email included.
func (r *userRepository) GetAccount(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

// findOne returns nil, nil when no row matches.
func (r *userRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(username) = LOWER(?)", username)
}

func (r *userRepository) GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	return r.findOne(ctx, "provider = ? AND provider_id = ?", provider, providerID)
}

func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := containsPattern(query)
	var users []models.User
	err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, update models.ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}
	if update.Link != nil {
		fields["link"] = *update.Link
	}
	if update.Avatar != nil {
		fields["avatar"] = *update.Avatar
	}

	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if update.Skills != nil {
			// Map updates bypass serializers, so skills go through the struct.
			user.Skills = *update.Skills
			if err := tx.Model(&user).Select("skills").Updates(&user).Error; err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			if err := tx.Model(&user).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "update_profile")
		return nil, notFoundOr(err, "User", id)
	}

	r.cache.Invalidate(ctx, cache.UserKey(id))
	r.log.LogUpdate(ctx, map[string]any{"user_id": id})
	return &user, nil
}

func (r *userRepository) LinkProvider(ctx context.Context, id uint, provider, providerID string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"provider": provider, "provider_id": providerID})
	if res.Error != nil {
		return conflictOr(res.Error, "Provider account already linked")
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.cache.Invalidate(ctx, cache.UserKey(id))
	return nil
}

// LoadRelations fills the follower, following and bookmark id sets of user.
func (r *userRepository) LoadRelations(ctx context.Context, user *models.User) error {
	db := r.db.WithContext(ctx)
	user.Followers = []uint{}
	user.Following = []uint{}
	user.Bookmarks = []uint{}

	if err := db.Model(&models.Follow{}).Where("following_id = ?", user.ID).
		Order("id ASC").Pluck("follower_id", &user.Followers).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", user.ID).
		Order("id ASC").Pluck("following_id", &user.Following).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Bookmark{}).Where("user_id = ?", user.ID).
		Order("id ASC").Pluck("post_id", &user.Bookmarks).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Summaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	out := make(map[uint]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Select("id", "username", "name", "avatar").
		Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}
