package analytics

import (
	"context"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// Recorder rolls up the per-day, per-channel counters. Every Record* call
// is safe to dispatch fire-and-forget: failures are logged and swallowed,
// observability is never a reason to fail the reply path.
type Recorder struct {
	repo repositories.AnalyticsRepo
}

func NewRecorder(repo repositories.AnalyticsRepo) *Recorder {
	return &Recorder{repo: repo}
}

// Day returns the UTC date bucket counters are keyed by.
func Day() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Recorder) recordCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

func (r *Recorder) swallow(op string, err error) {
	if err != nil {
		utils.LogWarn("analytics record failed", map[string]interface{}{
			"op": op, "error": err.Error(),
		})
	}
}

func (r *Recorder) RecordConversation(channel models.Channel) {
	ctx, cancel := r.recordCtx()
	defer cancel()
	r.swallow("conversation", r.repo.IncrConversations(ctx, Day(), channel))
}

// RecordMessages adds n messages (user and bot turns both count).
func (r *Recorder) RecordMessages(channel models.Channel, n int) {
	ctx, cancel := r.recordCtx()
	defer cancel()
	r.swallow("messages", r.repo.IncrMessages(ctx, Day(), channel, n))
}

func (r *Recorder) RecordHandoff(channel models.Channel) {
	ctx, cancel := r.recordCtx()
	defer cancel()
	r.swallow("handoff", r.repo.IncrHandoffs(ctx, Day(), channel))
}

func (r *Recorder) RecordCsat(channel models.Channel, score int) {
	if score < 1 || score > 5 {
		return
	}
	ctx, cancel := r.recordCtx()
	defer cancel()
	r.swallow("csat", r.repo.AddCsat(ctx, Day(), channel, score))
}

func (r *Recorder) RecordStoreClick(channel models.Channel) {
	ctx, cancel := r.recordCtx()
	defer cancel()
	r.swallow("store_click", r.repo.IncrStoreClicks(ctx, Day(), channel))
}

// LastNDays returns the raw rows for the dashboard list.
func (r *Recorder) LastNDays(ctx context.Context, n int) ([]models.AnalyticsDaily, error) {
	if n <= 0 {
		n = 7
	}
	to := Day()
	from := to.AddDate(0, 0, -(n - 1))
	return r.repo.ListRange(ctx, from, to)
}

// Totals is the aggregated dashboard summary across channels.
type Totals struct {
	Conversations int64   `json:"total_conversations"`
	Messages      int64   `json:"total_messages"`
	Handoffs      int64   `json:"handoffs"`
	AvgCsat       float64 `json:"avg_csat"`
	StoreClicks   int64   `json:"store_clicks"`
}

// Summary aggregates the last n days into one card set.
func (r *Recorder) Summary(ctx context.Context, n int) (*Totals, error) {
	rows, err := r.LastNDays(ctx, n)
	if err != nil {
		return nil, err
	}

	var t Totals
	var csatSum, csatCount int64
	for _, row := range rows {
		t.Conversations += row.TotalConversations
		t.Messages += row.TotalMessages
		t.Handoffs += row.Handoffs
		t.StoreClicks += row.StoreClicks
		csatSum += row.CsatSum
		csatCount += row.CsatCount
	}
	if csatCount > 0 {
		t.AvgCsat = float64(csatSum) / float64(csatCount)
	}
	return &t, nil
}
