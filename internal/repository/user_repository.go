package repository

import (
	"context"

	"github.com/shinyyama/directchat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Upsert(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	ListExcept(ctx context.Context, id string) ([]model.User, error)
	SetDB(db *gorm.DB)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) SetDB(db *gorm.DB) {
	r.db = db
}

// Upsert inserts the user or refreshes its profile columns.
func (r *userRepository) Upsert(ctx context.Context, u *model.User) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "profile_pic", "updated_at"}),
	}).Create(u).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) ListExcept(ctx context.Context, id string) ([]model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.User
	if err := r.db.WithContext(ctx).
		Where("id <> ?", id).
		Order("full_name ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
