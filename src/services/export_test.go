package services

import (
	"time"

	"github.com/username/commissioncalc/backend/src/llm"
)

// NewInsightServiceWithClock is NewInsightService with a fixed time source.
func NewInsightServiceWithClock(model llm.ChatModel, store BusinessDataStore, now func() time.Time) InsightService {
	return &insightServiceImpl{model: model, store: store, now: now}
}
