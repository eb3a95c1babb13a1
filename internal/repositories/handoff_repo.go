package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// HandoffRepo owns handoff records. The at-most-one-pending-per-conversation
// invariant is enforced here, backed by a partial unique index.
type HandoffRepo interface {
	// Create persists a pending handoff. Returns ErrConflict when the
	// conversation already has one pending.
	Create(ctx context.Context, h *models.Handoff) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Handoff, error)
	PendingFor(ctx context.Context, conversationID uuid.UUID) (*models.Handoff, error)
	List(ctx context.Context, status models.HandoffStatus, limit, offset int) ([]models.Handoff, error)
	Resolve(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) error
}

type handoffRepo struct {
	db *gorm.DB
}

func NewHandoffRepo(db *gorm.DB) HandoffRepo {
	return &handoffRepo{db: db}
}

func (r *handoffRepo) Create(ctx context.Context, h *models.Handoff) error {
	h.Status = models.HandoffPending
	err := r.db.WithContext(ctx).Create(h).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (r *handoffRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Handoff, error) {
	var h models.Handoff
	err := r.db.WithContext(ctx).First(&h, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *handoffRepo) PendingFor(ctx context.Context, conversationID uuid.UUID) (*models.Handoff, error) {
	var h models.Handoff
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND status = ?", conversationID, models.HandoffPending).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *handoffRepo) List(ctx context.Context, status models.HandoffStatus, limit, offset int) ([]models.Handoff, error) {
	q := r.db.WithContext(ctx).Model(&models.Handoff{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var hs []models.Handoff
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&hs).Error
	return hs, err
}

func (r *handoffRepo) Resolve(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      models.HandoffResolved,
		"resolved_at": now,
	}
	if assignedTo != nil {
		updates["assigned_to"] = *assignedTo
	}
	res := r.db.WithContext(ctx).Model(&models.Handoff{}).
		Where("id = ? AND status = ?", id, models.HandoffPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
