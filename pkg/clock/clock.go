// Package clock provides the time sources used by the authentication
// lifecycle: a wall clock for expiry checks and a scheduler that drives
// periodic callbacks such as the one-second OTP countdown.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Stopper cancels a scheduled job. Stop is idempotent. A callback that was
// already running when Stop was called may still complete.
type Stopper interface {
	Stop()
}

// Scheduler runs fn every interval until the returned Stopper is stopped.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Stopper
}

// System is the real clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// TickerScheduler runs jobs on their own goroutine using a time.Ticker.
type TickerScheduler struct{}

// Every starts a background worker which calls fn on every tick.
func (TickerScheduler) Every(interval time.Duration, fn func()) Stopper {
	j := &tickerJob{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go j.run(interval, fn)
	return j
}

type tickerJob struct {
	once   sync.Once
	stopCh chan struct{}
	doneCh chan struct{}
}

func (j *tickerJob) run(interval time.Duration, fn func()) {
	defer close(j.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A stop may race with a tick; the stop wins.
			select {
			case <-j.stopCh:
				return
			default:
			}
			fn()
		case <-j.stopCh:
			return
		}
	}
}

// Stop does not wait for the worker to exit so it is safe to call from
// inside the callback.
func (j *tickerJob) Stop() {
	j.once.Do(func() { close(j.stopCh) })
}
