package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// TemplateRepo is the configuration lookup used by the reply generator
// and the admin CRUD surface. Reads always hit the current active set so
// an edit takes effect on the next turn.
type TemplateRepo interface {
	GetActiveByKey(ctx context.Context, key string) (*models.Template, error)
	List(ctx context.Context) ([]models.Template, error)
	Create(ctx context.Context, t *models.Template) error
	Update(ctx context.Context, t *models.Template) error
}

type templateRepo struct {
	db *gorm.DB
}

func NewTemplateRepo(db *gorm.DB) TemplateRepo {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetActiveByKey(ctx context.Context, key string) (*models.Template, error) {
	var t models.Template
	err := r.db.WithContext(ctx).
		Where("key = ? AND active = true", key).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepo) List(ctx context.Context) ([]models.Template, error) {
	var ts []models.Template
	err := r.db.WithContext(ctx).Order("key ASC").Find(&ts).Error
	return ts, err
}

func (r *templateRepo) Create(ctx context.Context, t *models.Template) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *templateRepo) Update(ctx context.Context, t *models.Template) error {
	res := r.db.WithContext(ctx).Model(&models.Template{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"key":        t.Key,
			"content_ar": t.ContentAr,
			"content_he": t.ContentHe,
			"variables":  t.Variables,
			"active":     t.Active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
