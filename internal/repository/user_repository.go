package repository

import (
	"context"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/pkg/database"
	appErr "github.com/finsync/engine/pkg/errors"
	"gorm.io/gorm"
)

// UserRepository stores accounts. On a schema without users.phone it runs in
// legacy mode: writes omit the column and reads return a nil Phone.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string, dest *models.User) error
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	EmailTakenByOther(ctx context.Context, email, exceptID string) (bool, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	Legacy() bool
}

// Columns a profile update may touch.
var userUpdatable = map[string]bool{
	"name":    true,
	"email":   true,
	"company": true,
	"phone":   true,
	"avatar":  true,
}

var legacyUserColumns = []string{
	"id", "email", "name", "company", "avatar", "password", "is_active", "created_at", "updated_at",
}

type userRepository struct {
	base   BaseRepository[models.User]
	db     *gorm.DB
	legacy bool
}

// NewUserRepository builds the repository; hasPhone comes from the startup schema check.
func NewUserRepository(db *gorm.DB, hasPhone bool) UserRepository {
	return &userRepository{base: NewBaseRepository[models.User](db, "user"), db: db, legacy: !hasPhone}
}

func (r *userRepository) Legacy() bool { return r.legacy }

func (r *userRepository) read(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.legacy {
		q = q.Select(legacyUserColumns)
	}
	return q
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	if !r.legacy {
		return r.base.Create(ctx, u)
	}
	if err := r.db.WithContext(ctx).Omit("phone").Create(u).Error; err != nil {
		return database.Classify(err, "user")
	}
	u.Phone = nil
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string, dest *models.User) error {
	if err := r.read(ctx).Where("id = ?", id).Take(dest).Error; err != nil {
		return database.Classify(err, "user")
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	if err := r.read(ctx).Where("email = ?", email).Take(dest).Error; err != nil {
		return database.Classify(err, "user")
	}
	return nil
}

func (r *userRepository) EmailTakenByOther(ctx context.Context, email, exceptID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&n).Error
	if err != nil {
		return false, database.Classify(err, "user")
	}
	return n > 0, nil
}

// Update applies whitelisted columns only; anything else is rejected.
func (r *userRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if !userUpdatable[k] {
			return appErr.Invalid("field " + k + " cannot be updated")
		}
		if k == "phone" && r.legacy {
			continue
		}
		clean[k] = v
	}
	return r.base.Update(ctx, id, clean)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}
