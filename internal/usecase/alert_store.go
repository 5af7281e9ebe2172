package usecase

import (
	"fmt"
	"sync"
	"time"

	"RiskDesk/internal/domain/models"

	"github.com/google/uuid"
)

// AlertStore keeps the alert history raised from control actions, newest first.
// The pipeline is its only writer; HTTP handlers read, acknowledge and clear.
type AlertStore struct {
	mu     sync.RWMutex
	cap    int
	alerts []models.Alert // oldest first
	now    func() time.Time
}

func NewAlertStore(capacity int, now func() time.Time) *AlertStore {
	if now == nil {
		now = time.Now
	}
	return &AlertStore{cap: capacity, now: now}
}

func (s *AlertStore) Append(actions ...models.ControlAction) []models.Alert {
	if len(actions) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	added := make([]models.Alert, 0, len(actions))
	for _, a := range actions {
		created := a.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		al := models.Alert{ID: uuid.NewString(), Action: a, CreatedAt: created}
		s.alerts = append(s.alerts, al)
		added = append(added, al)
	}
	if s.cap > 0 && len(s.alerts) > s.cap {
		s.alerts = append(s.alerts[:0:0], s.alerts[len(s.alerts)-s.cap:]...)
	}
	return added
}

func (s *AlertStore) Acknowledge(id string) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if !s.alerts[i].Acknowledged {
			at := s.now()
			s.alerts[i].Acknowledged = true
			s.alerts[i].AcknowledgedAt = &at
		}
		return s.alerts[i], nil
	}
	return models.Alert{}, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
}

// Clear drops every alert and returns how many there were.
func (s *AlertStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.alerts)
	s.alerts = nil
	return n
}

// List returns up to limit alerts, newest first. unackedOnly filters acknowledged ones.
func (s *AlertStore) List(limit int, unackedOnly bool) []models.Alert {
	rows, _ := s.Page(limit, unackedOnly)
	return rows
}

// Page is List plus the number of matching alerts before the limit.
func (s *AlertStore) Page(limit int, unackedOnly bool) ([]models.Alert, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0)
	total := 0
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if unackedOnly && s.alerts[i].Acknowledged {
			continue
		}
		total++
		if limit <= 0 || len(out) < limit {
			out = append(out, s.alerts[i])
		}
	}
	return out, total
}
