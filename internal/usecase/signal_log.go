package usecase

import (
	"sync"

	"RiskDesk/internal/domain/models"
)

// SignalLog is an append-only, most-recent-first history of signals.
// A cap of 0 keeps everything.
type SignalLog struct {
	mu      sync.RWMutex
	cap     int
	signals []models.Signal // oldest first internally
}

func NewSignalLog(capacity int) *SignalLog {
	if capacity < 0 {
		capacity = 0
	}
	return &SignalLog{cap: capacity}
}

func (l *SignalLog) Append(signals ...models.Signal) {
	if len(signals) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signals = append(l.signals, signals...)
	if l.cap > 0 && len(l.signals) > l.cap {
		drop := len(l.signals) - l.cap
		l.signals = append(l.signals[:0:0], l.signals[drop:]...)
	}
}

// List returns up to limit signals, newest first. limit <= 0 returns all.
func (l *SignalLog) List(limit int) []models.Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.signals)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Signal, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.signals[i])
	}
	return out
}

func (l *SignalLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.signals)
}
