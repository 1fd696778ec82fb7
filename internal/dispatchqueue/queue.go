// Package dispatchqueue orders jobs a dataset source emits within a
// single tick before the controller dispatches them one at a time:
// shorter jobs go first, so they don't queue for a full tick behind a
// job that will occupy its layers' nodes for hours.
//
// Grounded on internal/infra/dsa's PriorityQueue (a thread-safe binary
// min-heap with starvation prevention), adapted from task priority
// classes to job duration and from a caller-supplied priority number to
// domain.JobSpec.Duration itself.
package dispatchqueue

import (
	"sync"
	"time"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// Item is one job waiting to be dispatched.
type Item struct {
	Spec        domain.JobSpec
	SubmittedAt time.Time
}

// Config controls starvation prevention: a job stuck behind shorter
// jobs for longer than BoostInterval has its effective duration halved,
// up to MaxBoost times, so a long job is never starved indefinitely by
// a steady stream of short ones.
type Config struct {
	BoostInterval time.Duration
	MaxBoost      int
}

// DefaultConfig boosts a starved job every thirty seconds, up to three
// times.
func DefaultConfig() Config {
	return Config{BoostInterval: 30 * time.Second, MaxBoost: 3}
}

// Queue is a thread-safe min-heap ordering jobs by duration, shortest
// first, with age-based starvation prevention.
type Queue struct {
	mu     sync.Mutex
	heap   []Item
	config Config
	now    func() time.Time
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	if cfg.BoostInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Queue{config: cfg, now: time.Now}
}

// Push adds a job to the queue. O(log n).
func (q *Queue) Push(spec domain.JobSpec, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if at.IsZero() {
		at = q.now()
	}
	q.heap = append(q.heap, Item{Spec: spec, SubmittedAt: at})
	q.siftUp(len(q.heap) - 1)
}

// Pop removes and returns the shortest-duration job. O(log n).
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return Item{}, false
	}
	top := q.heap[0]
	last := len(q.heap) - 1
	q.heap[0] = q.heap[last]
	q.heap = q.heap[:last]
	if len(q.heap) > 0 {
		q.siftDown(0)
	}
	return top, true
}

// Len returns the number of jobs waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// effectiveDuration halves a job's duration once per BoostInterval it
// has waited, up to MaxBoost halvings, so it eventually surfaces ahead
// of a continual stream of short jobs.
func (q *Queue) effectiveDuration(item *Item) time.Duration {
	age := q.now().Sub(item.SubmittedAt)
	boosts := int(age / q.config.BoostInterval)
	if boosts > q.config.MaxBoost {
		boosts = q.config.MaxBoost
	}
	eff := item.Spec.Duration
	for i := 0; i < boosts; i++ {
		eff /= 2
	}
	return eff
}

func (q *Queue) less(i, j int) bool {
	di := q.effectiveDuration(&q.heap[i])
	dj := q.effectiveDuration(&q.heap[j])
	if di != dj {
		return di < dj
	}
	return q.heap[i].SubmittedAt.Before(q.heap[j].SubmittedAt)
}

func (q *Queue) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if q.less(idx, parent) {
			q.heap[idx], q.heap[parent] = q.heap[parent], q.heap[idx]
			idx = parent
		} else {
			break
		}
	}
}

func (q *Queue) siftDown(idx int) {
	n := len(q.heap)
	for {
		smallest := idx
		left := 2*idx + 1
		right := 2*idx + 2
		if left < n && q.less(left, smallest) {
			smallest = left
		}
		if right < n && q.less(right, smallest) {
			smallest = right
		}
		if smallest == idx {
			break
		}
		q.heap[idx], q.heap[smallest] = q.heap[smallest], q.heap[idx]
		idx = smallest
	}
}
