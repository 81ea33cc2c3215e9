package cartview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/osomejk/stonedesk-gateway/internal/charges"
	"github.com/osomejk/stonedesk-gateway/internal/obs"
)

const defaultDebounce = time.Second

// PushFunc persists a charges configuration to the distributor backend on
// behalf of the given opaque token.
type PushFunc func(ctx context.Context, token string, cfg charges.Config) error

// Persister coalesces rapid charge edits per cart key and pushes only the
// latest configuration once a quiet period elapses. Each edit carries a
// monotonically increasing sequence number; when a flush fires while an older
// push is still in flight, the stale push's context is cancelled first, so a
// reordered response can never overwrite a newer accepted state. At most one
// push is in flight per key.
type Persister struct {
	Push    PushFunc
	Delay   time.Duration
	Logger  zerolog.Logger
	OnFlush func(key string, err error)

	mu      sync.Mutex
	wg      sync.WaitGroup
	entries map[string]*pendingPush
}

type pendingPush struct {
	token          string
	cfg            charges.Config
	seq            uint64
	timer          *time.Timer
	inflightCancel context.CancelFunc
}

func (p *Persister) delay() time.Duration {
	if p.Delay <= 0 {
		return defaultDebounce
	}
	return p.Delay
}

// Enqueue records the latest configuration for the key and re-arms the
// debounce timer. Edits inside the window coalesce into a single push.
func (p *Persister) Enqueue(key, token string, cfg charges.Config) {
	if p == nil || p.Push == nil || key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entries == nil {
		p.entries = make(map[string]*pendingPush)
	}
	e, ok := p.entries[key]
	if !ok {
		e = &pendingPush{}
		p.entries[key] = e
	}
	e.seq++
	e.token = token
	e.cfg = cfg
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(p.delay(), func() { p.flush(key) })
}

func (p *Persister) flush(key string) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	if e.inflightCancel != nil {
		// a stale push is still in flight; cancel it before launching the newer one
		e.inflightCancel()
		e.inflightCancel = nil
		if obs.ChargesPersistSupersededTotal != nil {
			obs.ChargesPersistSupersededTotal.Inc()
		}
	}
	seq := e.seq
	token := e.token
	cfg := e.cfg
	ctx, cancel := context.WithCancel(context.Background())
	e.inflightCancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		err := p.Push(ctx, token, cfg)
		cancel()

		p.mu.Lock()
		if current, ok := p.entries[key]; ok && current == e && current.seq == seq {
			current.inflightCancel = nil
			delete(p.entries, key)
		}
		p.mu.Unlock()

		p.record(key, seq, err)
	}()
}

func (p *Persister) record(key string, seq uint64, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		result = "superseded"
	default:
		result = "error"
		// no automatic retry: the failure is logged and the next edit or
		// page load carries the state forward
		p.Logger.Error().Err(err).Str("cart_key", key).Uint64("seq", seq).Msg("persist charges")
	}
	if obs.ChargesPersistFlushTotal != nil {
		obs.ChargesPersistFlushTotal.WithLabelValues(result).Inc()
	}
	if p.OnFlush != nil {
		p.OnFlush(key, err)
	}
}

// Pending returns the latest not-yet-flushed configuration for a key. Edits
// landing inside the debounce window start from this accumulated state, not
// from the backend's pre-burst snapshot, so earlier edits in the burst are
// never lost.
func (p *Persister) Pending(key string) (charges.Config, bool) {
	if p == nil {
		return charges.Config{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return charges.Config{}, false
	}
	return e.cfg, true
}

// Close fires any pending pushes immediately and waits for in-flight ones to
// finish or for the context to expire.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	keys := make([]string, 0, len(p.entries))
	for key, e := range p.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		keys = append(keys, key)
	}
	p.mu.Unlock()

	for _, key := range keys {
		p.flush(key)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
