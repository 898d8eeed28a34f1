package clock

import (
	"sync"
	"time"
)

// Manual is a deterministic Clock and Scheduler for tests. Time only moves
// when Advance is called, and scheduled jobs fire synchronously from
// Advance once per elapsed interval.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	jobs []*manualJob
}

// NewManual returns a Manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t without firing any jobs.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Every registers fn to run each time Advance crosses interval.
func (m *Manual) Every(interval time.Duration, fn func()) Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := &manualJob{interval: interval, next: m.now.Add(interval), fn: fn}
	m.jobs = append(m.jobs, j)
	return j
}

// Jobs reports how many scheduled jobs are still active.
func (m *Manual) Jobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, j := range m.jobs {
		if !j.stopped() {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, firing due jobs in order. Callbacks run
// without the clock's lock held so they may call back into it.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due *manualJob
		for _, j := range m.jobs {
			if j.stopped() || j.next.After(target) {
				continue
			}
			if due == nil || j.next.Before(due.next) {
				due = j
			}
		}
		if due == nil {
			m.now = target
			m.jobs = compactJobs(m.jobs)
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next = due.next.Add(due.interval)
		m.mu.Unlock()

		due.fn()
	}
}

func compactJobs(jobs []*manualJob) []*manualJob {
	out := jobs[:0]
	for _, j := range jobs {
		if !j.stopped() {
			out = append(out, j)
		}
	}
	return out
}

type manualJob struct {
	mu       sync.Mutex
	done     bool
	interval time.Duration
	next     time.Time
	fn       func()
}

func (j *manualJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
}

func (j *manualJob) stopped() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}
