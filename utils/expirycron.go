package utils

import (
	"time"

	"github.com/go-co-op/gocron"
)

// NewSweepScheduler runs job every interval in the scheduler goroutine. Runs of the job never
// overlap. The scheduler is returned stopped.
func NewSweepScheduler(location *time.Location, interval time.Duration, job func()) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(location)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(job); err != nil {
		return nil, err
	}
	return s, nil
}
