package face

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

type faultKind int

const (
	faultTimeout faultKind = iota
	faultNack
)

type fault struct {
	prefix    ndn.Name
	kind      faultKind
	reason    NackReason
	remaining int
}

type stored struct {
	data    *ndn.Data
	arrived time.Time
}

// stale reports whether a MustBeFresh Interest must skip the packet at now.
// Data without a FreshnessPeriod never goes stale.
func (s stored) stale(now time.Time) bool {
	period := s.data.MetaInfo.FreshnessPeriod
	return period > 0 && now.Sub(s.arrived) >= period
}

// Memory is an in-process Face. Interests are answered from a repository of
// Data packets; an Interest with no matching Data times out. A MustBeFresh
// Interest skips packets older than their FreshnessPeriod. Callbacks are
// queued and only run inside ProcessEvents, on the caller's goroutine.
type Memory struct {
	mu        sync.Mutex
	repo      []stored
	queue     []func()
	faults    []*fault
	expressed []*ndn.Interest
	nextID    uint64
	closed    bool

	now    func() time.Time
	logger *slog.Logger
}

// MemoryOption configures a Memory face.
type MemoryOption func(*Memory)

// WithLogger sets the logger used for Interest tracing.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for Data freshness.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty in-process face.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "face")
	return m
}

// Put publishes Data packets into the repository, replacing packets with
// the same name.
func (m *Memory) Put(packets ...*ndn.Data) {
	m.mu.Lock()
	defer m.mu.Unlock()
	arrived := m.now()
	for _, data := range packets {
		entry := stored{data: data, arrived: arrived}
		idx, found := slices.BinarySearchFunc(m.repo, data.Name, func(s stored, name ndn.Name) int {
			return s.data.Name.Compare(name)
		})
		if found {
			m.repo[idx] = entry
			continue
		}
		m.repo = slices.Insert(m.repo, idx, entry)
	}
}

// Remove deletes every packet under prefix and reports how many were removed.
func (m *Memory) Remove(prefix ndn.Name) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.repo)
	m.repo = slices.DeleteFunc(m.repo, func(s stored) bool { return prefix.IsPrefixOf(s.data.Name) })
	return before - len(m.repo)
}

// DropNext makes the next n Interests under prefix time out even when Data
// is available.
func (m *Memory) DropNext(prefix ndn.Name, n int) {
	m.addFault(&fault{prefix: prefix, kind: faultTimeout, remaining: n})
}

// NackNext makes the next n Interests under prefix receive a Nack.
func (m *Memory) NackNext(prefix ndn.Name, n int, reason NackReason) {
	m.addFault(&fault{prefix: prefix, kind: faultNack, reason: reason, remaining: n})
}

func (m *Memory) addFault(f *fault) {
	m.mu.Lock()
	m.faults = append(m.faults, f)
	m.mu.Unlock()
}

// Expressed returns copies of every Interest expressed so far, in order.
func (m *Memory) Expressed() []*ndn.Interest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ndn.Interest, len(m.expressed))
	for i, interest := range m.expressed {
		out[i] = interest.Clone()
	}
	return out
}

// Close rejects further Interests and discards queued callbacks.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}

// ExpressInterest queues interest for resolution by ProcessEvents.
func (m *Memory) ExpressInterest(interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.nextID++
	id := m.nextID
	sent := interest.Clone()
	m.expressed = append(m.expressed, sent)
	m.queue = append(m.queue, func() { m.resolve(id, sent, onData, onTimeout, onNack) })
	return id, nil
}

// ProcessEvents runs queued callbacks until the queue is empty, including
// work queued by the callbacks themselves. It returns the number of
// Interests resolved.
func (m *Memory) ProcessEvents() int {
	processed := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return processed
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		next()
		processed++
	}
}

func (m *Memory) resolve(id uint64, interest *ndn.Interest, onData OnData, onTimeout OnTimeout, onNack OnNack) {
	logger := m.logger.With("interest_id", id, "name", interest.Name.String())

	m.mu.Lock()
	f := m.takeFault(interest.Name)
	data := m.lookup(interest)
	m.mu.Unlock()

	switch {
	case f != nil && f.kind == faultNack:
		logger.Debug("interest nacked", "reason", f.reason.String())
		if onNack != nil {
			onNack(interest, f.reason)
		}
	case f != nil || data == nil:
		logger.Debug("interest timed out")
		if onTimeout != nil {
			onTimeout(interest)
		}
	default:
		logger.Debug("interest satisfied", "data", data.Name.String())
		if onData != nil {
			onData(interest, data)
		}
	}
}

func (m *Memory) takeFault(name ndn.Name) *fault {
	for i, f := range m.faults {
		if !f.prefix.IsPrefixOf(name) {
			continue
		}
		f.remaining--
		if f.remaining <= 0 {
			m.faults = slices.Delete(m.faults, i, i+1)
		}
		return f
	}
	return nil
}

func (m *Memory) lookup(interest *ndn.Interest) *ndn.Data {
	now := m.now()
	var match *ndn.Data
	for _, s := range m.repo {
		if !interest.MatchesName(s.data.Name) {
			continue
		}
		if interest.MustBeFresh && s.stale(now) {
			continue
		}
		if interest.ChildSelector != ndn.ChildSelectorRightmost {
			return s.data
		}
		match = s.data
	}
	return match
}
