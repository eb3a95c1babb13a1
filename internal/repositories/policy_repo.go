package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// PolicyRepo serves the guardrail engine and the admin CRUD surface.
type PolicyRepo interface {
	ListActive(ctx context.Context) ([]models.Policy, error)
	List(ctx context.Context) ([]models.Policy, error)
	Create(ctx context.Context, p *models.Policy) error
	Update(ctx context.Context, p *models.Policy) error
}

type policyRepo struct {
	db *gorm.DB
}

func NewPolicyRepo(db *gorm.DB) PolicyRepo {
	return &policyRepo{db: db}
}

func (r *policyRepo) ListActive(ctx context.Context) ([]models.Policy, error) {
	var ps []models.Policy
	err := r.db.WithContext(ctx).Where("active = true").Find(&ps).Error
	return ps, err
}

func (r *policyRepo) List(ctx context.Context) ([]models.Policy, error) {
	var ps []models.Policy
	err := r.db.WithContext(ctx).Order("type ASC").Find(&ps).Error
	return ps, err
}

func (r *policyRepo) Create(ctx context.Context, p *models.Policy) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *policyRepo) Update(ctx context.Context, p *models.Policy) error {
	res := r.db.WithContext(ctx).Model(&models.Policy{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"type":       p.Type,
			"title_ar":   p.TitleAr,
			"title_he":   p.TitleHe,
			"content_ar": p.ContentAr,
			"content_he": p.ContentHe,
			"keywords":   p.Keywords,
			"active":     p.Active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
