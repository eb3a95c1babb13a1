package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// ConversationRepo owns conversations and their messages.
type ConversationRepo interface {
	// GetOrCreate returns the open conversation for a visitor/channel pair,
	// creating one if none exists. The second return value is true when a
	// new conversation was created. Safe under concurrent webhook retries.
	GetOrCreate(ctx context.Context, visitorID string, channel models.Channel) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// AppendMessage persists a message and bumps the conversation's
	// message_count in the same transaction. Returns ErrDuplicateDelivery
	// when msg.ProviderMessageID was already stored.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// Transition moves a conversation to a new status, rejecting illegal
	// moves with ErrConflict. Transitions are irreversible.
	Transition(ctx context.Context, id uuid.UUID, to models.ConversationStatus) error

	// SetTurnMeta updates the denormalized language/intent columns after a
	// turn. Empty values leave the column untouched.
	SetTurnMeta(ctx context.Context, id uuid.UUID, language, intent string) error

	// SetMessageIntent records the classified intent on a user message.
	SetMessageIntent(ctx context.Context, messageID uuid.UUID, intent string) error

	// RecentMessages returns the last n messages ordered oldest first.
	RecentMessages(ctx context.Context, id uuid.UUID, n int) ([]models.Message, error)

	List(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error)

	// ListIdle returns non-closed conversations on a channel whose last
	// activity predates the cutoff. Used by the inactivity-closure sweep.
	ListIdle(ctx context.Context, channel models.Channel, cutoff time.Time) ([]models.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) GetOrCreate(ctx context.Context, visitorID string, channel models.Channel) (*models.Conversation, bool, error) {
	var conv models.Conversation
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("visitor_id = ? AND channel = ? AND status <> ?", visitorID, channel, models.StatusClosed).
			First(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		conv = models.Conversation{
			VisitorID: visitorID,
			Channel:   channel,
			Status:    models.StatusActive,
		}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		created = true
		return nil
	})

	// A concurrent delivery can win the insert race; the partial unique
	// index rejects the loser, which then reads the winner's row.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		created = false
		err = r.db.WithContext(ctx).
			Where("visitor_id = ? AND channel = ? AND status <> ?", visitorID, channel, models.StatusClosed).
			First(&conv).Error
	}
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			UpdateColumns(map[string]interface{}{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    time.Now(),
			}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateDelivery
	}
	return err
}

func (r *conversationRepo) Transition(ctx context.Context, id uuid.UUID, to models.ConversationStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !conv.CanTransition(to) {
			return ErrConflict
		}
		return tx.Model(&conv).Update("status", to).Error
	})
}

func (r *conversationRepo) SetTurnMeta(ctx context.Context, id uuid.UUID, language, intent string) error {
	updates := map[string]interface{}{}
	if language != "" {
		updates["language"] = language
	}
	if intent != "" {
		updates["intent"] = intent
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conversationRepo) SetMessageIntent(ctx context.Context, messageID uuid.UUID, intent string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("intent", intent).Error
}

func (r *conversationRepo) RecentMessages(ctx context.Context, id uuid.UUID, n int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("seq DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// Reverse to chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *conversationRepo) List(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error) {
	q := r.db.WithContext(ctx).Model(&models.Conversation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var convs []models.Conversation
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&convs).Error
	return convs, err
}

func (r *conversationRepo) ListIdle(ctx context.Context, channel models.Channel, cutoff time.Time) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("channel = ? AND status = ? AND updated_at < ?", channel, models.StatusActive, cutoff).
		Find(&convs).Error
	return convs, err
}
