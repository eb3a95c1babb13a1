package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// AnalyticsRepo maintains the per-day, per-channel counter rows. Every
// mutation is an upsert-and-increment so concurrent turns on the same
// channel/day never lose counts.
type AnalyticsRepo interface {
	IncrConversations(ctx context.Context, day time.Time, channel models.Channel) error
	IncrMessages(ctx context.Context, day time.Time, channel models.Channel, n int) error
	IncrHandoffs(ctx context.Context, day time.Time, channel models.Channel) error
	AddCsat(ctx context.Context, day time.Time, channel models.Channel, score int) error
	IncrStoreClicks(ctx context.Context, day time.Time, channel models.Channel) error
	ListRange(ctx context.Context, from, to time.Time) ([]models.AnalyticsDaily, error)
}

type analyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepo(db *gorm.DB) AnalyticsRepo {
	return &analyticsRepo{db: db}
}

var analyticsKey = []clause.Column{{Name: "date"}, {Name: "channel"}}

func (r *analyticsRepo) upsert(ctx context.Context, row *models.AnalyticsDaily, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   analyticsKey,
		DoUpdates: clause.Assignments(updates),
	}).Create(row).Error
}

func (r *analyticsRepo) IncrConversations(ctx context.Context, day time.Time, channel models.Channel) error {
	return r.upsert(ctx,
		&models.AnalyticsDaily{Date: day, Channel: channel, TotalConversations: 1},
		map[string]interface{}{"total_conversations": gorm.Expr("analytics_daily.total_conversations + 1")})
}

func (r *analyticsRepo) IncrMessages(ctx context.Context, day time.Time, channel models.Channel, n int) error {
	return r.upsert(ctx,
		&models.AnalyticsDaily{Date: day, Channel: channel, TotalMessages: int64(n)},
		map[string]interface{}{"total_messages": gorm.Expr("analytics_daily.total_messages + ?", n)})
}

func (r *analyticsRepo) IncrHandoffs(ctx context.Context, day time.Time, channel models.Channel) error {
	return r.upsert(ctx,
		&models.AnalyticsDaily{Date: day, Channel: channel, Handoffs: 1},
		map[string]interface{}{"handoffs": gorm.Expr("analytics_daily.handoffs + 1")})
}

func (r *analyticsRepo) AddCsat(ctx context.Context, day time.Time, channel models.Channel, score int) error {
	return r.upsert(ctx,
		&models.AnalyticsDaily{Date: day, Channel: channel, CsatSum: int64(score), CsatCount: 1},
		map[string]interface{}{
			"csat_sum":   gorm.Expr("analytics_daily.csat_sum + ?", score),
			"csat_count": gorm.Expr("analytics_daily.csat_count + 1"),
		})
}

func (r *analyticsRepo) IncrStoreClicks(ctx context.Context, day time.Time, channel models.Channel) error {
	return r.upsert(ctx,
		&models.AnalyticsDaily{Date: day, Channel: channel, StoreClicks: 1},
		map[string]interface{}{"store_clicks": gorm.Expr("analytics_daily.store_clicks + 1")})
}

func (r *analyticsRepo) ListRange(ctx context.Context, from, to time.Time) ([]models.AnalyticsDaily, error) {
	var rows []models.AnalyticsDaily
	err := r.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", from, to).
		Order("date DESC, channel ASC").
		Find(&rows).Error
	return rows, err
}
