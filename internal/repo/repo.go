package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/models"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("email already registered")
	// ErrStale is returned by CompareAndUpdate when the guard no longer holds.
	ErrStale = errors.New("user record changed concurrently")
)

// UserStore is what the auth core needs from persistence. Emails are expected
// to be normalized by the caller.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error)
	CompareAndUpdate(ctx context.Context, id uuid.UUID, guard, fields map[string]any) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormRepo struct {
	DB *gorm.DB
}

var _ UserStore = (*GormRepo)(nil)

func (r *GormRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Create inserts u unless the email is taken. The existing row is never
// touched on conflict.
func (r *GormRepo) Create(ctx context.Context, u *models.User) error {
	row := *u
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(&row)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrConflict
	}
	*u = row
	return nil
}

func (r *GormRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	return r.CompareAndUpdate(ctx, id, nil, fields)
}

// CompareAndUpdate applies fields only while every guard column still holds
// its expected value. A nil guard value matches NULL.
func (r *GormRepo) CompareAndUpdate(ctx context.Context, id uuid.UUID, guard, fields map[string]any) (*models.User, error) {
	q := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
	for col, v := range guard {
		if v == nil {
			q = q.Where(col + " IS NULL")
			continue
		}
		q = q.Where(col+" = ?", v)
	}

	res := q.Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStale
	}
	return r.FindByID(ctx, id)
}

func (r *GormRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
