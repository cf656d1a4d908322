// Package connectivity reports whether the remote draft store is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Monitor interface {
	Online() bool

	// Subscribe returns a channel receiving the new state on every transition,
	// and a function that ends the subscription.
	Subscribe() (<-chan bool, func())
}

// broadcaster tracks the current state and fans transitions out to subscribers.
type broadcaster struct {
	mu     sync.Mutex
	online bool
	subs   map[chan bool]struct{}
}

func (b *broadcaster) init(online bool) {
	b.online = online
	b.subs = make(map[chan bool]struct{})
}

func (b *broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *broadcaster) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// set records the state and reports whether it changed.
func (b *broadcaster) set(online bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.online == online {
		return false
	}
	b.online = online

	for ch := range b.subs {
		// Subscribers only care about the latest state.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

// Static is a Monitor whose state is set by hand.
type Static struct {
	broadcaster
}

func NewStatic(online bool) *Static {
	s := &Static{}
	s.init(online)
	return s
}

func (s *Static) Set(online bool) {
	s.set(online)
}

// Prober polls a health check and reports transitions.
type Prober struct {
	broadcaster

	check    func(ctx context.Context) error
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewProber starts optimistic: the first failed check flips it offline.
func NewProber(check func(ctx context.Context) error, interval, timeout time.Duration, log zerolog.Logger) *Prober {
	p := &Prober{
		check:    check,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
	p.init(true)
	return p
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Probe(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe runs one check and returns the resulting state.
func (p *Prober) Probe(ctx context.Context) bool {
	probeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.check(probeCtx)
	if ctx.Err() != nil {
		return p.Online()
	}

	online := err == nil
	if p.set(online) {
		if online {
			p.log.Info().Msg("Remote draft store is reachable again")
		} else {
			p.log.Warn().Err(err).Msg("Remote draft store is unreachable")
		}
	}
	return online
}
