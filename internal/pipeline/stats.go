package pipeline

import (
	"sync"
	"time"

	"github.com/Brownie44l1/catdog-api/internal/model"
)

// Stats counts predictions since the process started.
type Stats struct {
	mu        sync.Mutex
	started   time.Time
	total     int
	cats      int
	dogs      int
	uncertain int
	last      *model.Prediction
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Predictions int               `json:"predictions"`
	Cats        int               `json:"cats"`
	Dogs        int               `json:"dogs"`
	Uncertain   int               `json:"uncertain"`
	Since       time.Time         `json:"since"`
	Last        *model.Prediction `json:"last,omitempty"`
}

func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// Record adds one prediction.
func (s *Stats) Record(p model.Prediction, reliable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	switch p.Label {
	case model.LabelCat:
		s.cats++
	case model.LabelDog:
		s.dogs++
	}
	if !reliable {
		s.uncertain++
	}
	s.last = &p
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Predictions: s.total,
		Cats:        s.cats,
		Dogs:        s.dogs,
		Uncertain:   s.uncertain,
		Since:       s.started,
	}
	if s.last != nil {
		last := *s.last
		snap.Last = &last
	}
	return snap
}
