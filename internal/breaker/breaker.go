// Package breaker implements per-provider circuit breakers.
//
// A breaker opens after FailureThreshold consecutive failures and rejects
// calls for a cooldown. When the cooldown elapses exactly one trial call is
// admitted (half-open). A successful trial closes the circuit; a failed one
// reopens it with the cooldown doubled, up to MaxCooldown.
package breaker

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while calls are being rejected.
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker state.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	MaxCooldown      time.Duration
}

// DefaultConfig returns default breaker configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		MaxCooldown:      10 * time.Minute,
	}
}

// withDefaults replaces invalid values with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = c.Cooldown
	}
	return c
}

// Clock returns the current time.
type Clock func() time.Time

// Breaker guards calls to one provider
type Breaker struct {
	name  string
	cfg   Config
	clock Clock

	mu            sync.Mutex
	state         State
	failures      int
	cooldown      time.Duration
	openedAt      time.Time
	trialInFlight bool
	generation    uint64

	onChange func(name string, from, to State)
}

// New creates a closed breaker.
func New(name string, cfg Config, clock Clock) *Breaker {
	if clock == nil {
		clock = time.Now
	}
	cfg = cfg.withDefaults()
	return &Breaker{
		name:     name,
		cfg:      cfg,
		clock:    clock,
		cooldown: cfg.Cooldown,
	}
}

// Allow asks permission for one call. On success the caller must invoke
// done exactly once with the call outcome. Extra invocations are ignored.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return nil, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			return nil, ErrCircuitOpen
		}
		b.trialInFlight = true
	}

	gen := b.generation
	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.record(gen, success) })
	}, nil
}

func (b *Breaker) record(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Outcome of a call admitted under a previous state.
	if gen != b.generation {
		return
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open(b.cfg.Cooldown)
		}
	case StateHalfOpen:
		b.trialInFlight = false
		if success {
			b.failures = 0
			b.cooldown = b.cfg.Cooldown
			b.transition(StateClosed)
			return
		}
		next := b.cooldown * 2
		if next > b.cfg.MaxCooldown {
			next = b.cfg.MaxCooldown
		}
		b.open(next)
	}
}

func (b *Breaker) open(cooldown time.Duration) {
	b.cooldown = cooldown
	b.openedAt = b.clock()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.generation++
	if b.onChange != nil && from != to {
		b.onChange(b.name, from, to)
	}
}

// State returns the current state without side effects. An open breaker
// whose cooldown has elapsed still reports open until the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker and clears its history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.cooldown = b.cfg.Cooldown
	b.trialInFlight = false
	b.transition(StateClosed)
}

// Snapshot describes a breaker for status reporting.
type Snapshot struct {
	Name                string        `json:"name"`
	State               string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Cooldown            time.Duration `json:"cooldown"`
	OpenUntil           *time.Time    `json:"open_until,omitempty"`
}

// Snapshot returns the breaker's current status.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
		Cooldown:            b.cooldown,
	}
	if b.state == StateOpen {
		until := b.openedAt.Add(b.cooldown)
		s.OpenUntil = &until
	}
	return s
}

// Registry keeps one breaker per provider slug, created on first use.
type Registry struct {
	cfg      Config
	clock    Clock
	onChange func(name string, from, to State)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry sharing cfg and clock across breakers.
func NewRegistry(cfg Config, clock Clock) *Registry {
	return &Registry{cfg: cfg, clock: clock, breakers: make(map[string]*Breaker)}
}

// OnStateChange installs a hook called on every transition of any breaker,
// with the breaker's lock held. It must not call back into the breaker.
func (r *Registry) OnStateChange(fn func(name string, from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
	for _, b := range r.breakers {
		b.mu.Lock()
		b.onChange = fn
		b.mu.Unlock()
	}
}

// Get returns the breaker for name.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.cfg, r.clock)
		b.onChange = r.onChange
		r.breakers[name] = b
	}
	return b
}

// Snapshot returns the status of every known breaker, sorted by name.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
