package repository

import (
	"context"

	"github.com/finsync/engine/pkg/database"
	appErr "github.com/finsync/engine/pkg/errors"
	"gorm.io/gorm"
)

// BaseRepository defines common CRUD operations.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	GetByID(ctx context.Context, id string, dest *T) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

type baseRepository[T any] struct {
	db     *gorm.DB
	entity string
}

// NewBaseRepository returns CRUD over T. entity names the row kind in error messages.
func NewBaseRepository[T any](db *gorm.DB, entity string) BaseRepository[T] {
	return &baseRepository[T]{db: db, entity: entity}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		return database.Classify(err, r.entity)
	}
	return nil
}

func (r *baseRepository[T]) GetByID(ctx context.Context, id string, dest *T) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(dest).Error; err != nil {
		return database.Classify(err, r.entity)
	}
	return nil
}

// Update writes only the given columns. updated_at is stamped by gorm when T has it.
func (r *baseRepository[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		var probe T
		return r.GetByID(ctx, id, &probe)
	}
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return database.Classify(res.Error, r.entity)
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound(r.entity + " not found")
	}
	return nil
}

func (r *baseRepository[T]) Delete(ctx context.Context, id string) error {
	var t T
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&t)
	if res.Error != nil {
		return database.Classify(res.Error, r.entity)
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound(r.entity + " not found")
	}
	return nil
}

// OwnedRepository is CRUD over rows that belong to one user.
type OwnedRepository[T any] interface {
	BaseRepository[T]
	ListByUser(ctx context.Context, userID string) ([]T, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type ownedRepository[T any] struct {
	BaseRepository[T]
	db     *gorm.DB
	entity string
	order  string
}

// NewOwnedRepository lists rows newest first using order, which must end in a unique column.
func NewOwnedRepository[T any](db *gorm.DB, entity, order string) OwnedRepository[T] {
	return &ownedRepository[T]{
		BaseRepository: NewBaseRepository[T](db, entity),
		db:             db,
		entity:         entity,
		order:          order,
	}
}

func (r *ownedRepository[T]) ListByUser(ctx context.Context, userID string) ([]T, error) {
	out := make([]T, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order(r.order).Find(&out).Error; err != nil {
		return nil, database.Classify(err, r.entity)
	}
	return out, nil
}

func (r *ownedRepository[T]) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, database.Classify(err, r.entity)
	}
	return n, nil
}

const newestFirst = "created_at DESC, id DESC"
