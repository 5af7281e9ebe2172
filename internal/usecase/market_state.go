package usecase

import (
	"sync"

	"RiskDesk/internal/domain/models"
)

// MarketSnapshot is a consistent copy of everything the pipeline reads per tick.
type MarketSnapshot struct {
	View      *models.MarketView
	News      *models.SentimentReading
	Social    *models.SentimentReading
	History   []float64
	Position  models.PositionState
	Execution models.ExecutionState
}

// MarketState holds the latest collaborator inputs. Writers are the feed,
// sentiment and position collectors; the pipeline reads a Snapshot per tick.
type MarketState struct {
	mu        sync.RWMutex
	window    int
	view      *models.MarketView
	news      *models.SentimentReading
	social    *models.SentimentReading
	history   []float64
	position  models.PositionState
	execution models.ExecutionState
}

// NewMarketState keeps at most window prices of history (0 means 500).
func NewMarketState(window int) *MarketState {
	if window <= 0 {
		window = 500
	}
	return &MarketState{window: window}
}

// SetView stores the latest snapshot.
func (s *MarketState) SetView(v *models.MarketView) {
	if v == nil {
		return
	}
	cp := *v
	s.mu.Lock()
	s.view = &cp
	s.mu.Unlock()
}

// AppendPrice adds one sampled price to the history window. The pipeline samples
// once per aggregation cycle so history spacing follows the cycle period.
func (s *MarketState) AppendPrice(p float64) {
	if !(p > 0) {
		return
	}
	s.mu.Lock()
	s.appendLocked(p)
	s.mu.Unlock()
}

// SeedHistory replaces the price history, keeping the newest window entries.
func (s *MarketState) SeedHistory(prices []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
	for _, p := range prices {
		if p > 0 {
			s.appendLocked(p)
		}
	}
}

func (s *MarketState) appendLocked(p float64) {
	s.history = append(s.history, p)
	if over := len(s.history) - s.window; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
}

// SetSentiment stores r under its source; unknown sources are ignored.
func (s *MarketState) SetSentiment(r *models.SentimentReading) {
	if r == nil {
		return
	}
	cp := *r
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cp.Source {
	case "news":
		s.news = &cp
	case "social":
		s.social = &cp
	}
}

func (s *MarketState) SetPosition(p models.PositionState) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

func (s *MarketState) SetExecution(e models.ExecutionState) {
	s.mu.Lock()
	s.execution = e
	s.mu.Unlock()
}

func (s *MarketState) LatestView() (models.MarketView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return models.MarketView{}, false
	}
	return *s.view, true
}

// Snapshot returns copies; callers may keep them across ticks.
func (s *MarketState) Snapshot() MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := MarketSnapshot{
		History:   append([]float64(nil), s.history...),
		Position:  s.position,
		Execution: s.execution,
	}
	if s.view != nil {
		v := *s.view
		snap.View = &v
	}
	if s.news != nil {
		n := *s.news
		snap.News = &n
	}
	if s.social != nil {
		so := *s.social
		snap.Social = &so
	}
	return snap
}
