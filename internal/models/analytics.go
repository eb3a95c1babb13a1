package models

import "time"

// AnalyticsDaily is one row of per-day, per-channel counters. Counters are
// incremented in place for the current day and left untouched afterwards.
// CSAT is stored as sum+count so concurrent submissions stay an increment.
type AnalyticsDaily struct {
	Date               time.Time `gorm:"type:date;primaryKey" json:"date"`
	Channel            Channel   `gorm:"type:text;primaryKey" json:"channel"`
	TotalConversations int64     `gorm:"not null;default:0" json:"total_conversations"`
	TotalMessages      int64     `gorm:"not null;default:0" json:"total_messages"`
	Handoffs           int64     `gorm:"not null;default:0" json:"handoffs"`
	CsatSum            int64     `gorm:"not null;default:0" json:"-"`
	CsatCount          int64     `gorm:"not null;default:0" json:"-"`
	StoreClicks        int64     `gorm:"not null;default:0" json:"store_clicks"`
}

func (AnalyticsDaily) TableName() string {
	return "analytics_daily"
}

// AvgCsat returns the running average score, 0 when no surveys came in.
func (a *AnalyticsDaily) AvgCsat() float64 {
	if a.CsatCount == 0 {
		return 0
	}
	return float64(a.CsatSum) / float64(a.CsatCount)
}
