// Package binlookup resolves card metadata from the leading digits of a card
// number while the customer is still typing. Resolution is best effort: a
// missing result must never block submission on its own.
package binlookup

import (
	"context"
	"strings"
	"sync"
	"time"

	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"go.uber.org/zap"
)

// minPrefixLen is how many leading digits a BIN lookup needs.
const minPrefixLen = 6

// Resolver tracks the prefix currently under the customer's cursor. A new
// prefix supersedes the previous one: the old request is cancelled and its
// result, if it still arrives, is kept in the cache but never reported as
// current.
type Resolver struct {
	backend gatewaydomain.MetadataResolver
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	current  string
	cancel   context.CancelFunc
	cache    map[string]gatewaydomain.CardMetadata
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// New builds a resolver over a gateway backend. backend may be nil for
// gateways that push metadata from their hosted fields instead; Observe is a
// no-op then.
func New(backend gatewaydomain.MetadataResolver, log *zap.Logger, timeout time.Duration) *Resolver {
	return &Resolver{
		backend:  backend,
		log:      log.Named("tokenization.binlookup"),
		timeout:  timeout,
		cache:    make(map[string]gatewaydomain.CardMetadata),
		inflight: make(map[string]struct{}),
	}
}

// Observe ingests the digits typed so far. Short prefixes clear the current
// selection; once six digits are present a lookup starts unless the prefix is
// already cached or in flight. Reports whether a lookup is running afterwards.
func (r *Resolver) Observe(ctx context.Context, digits string) bool {
	prefix := normalizePrefix(digits)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return false
	}
	if prefix == "" {
		r.supersedeLocked("")
		return false
	}
	if prefix == r.current {
		_, busy := r.inflight[prefix]
		return busy
	}

	r.supersedeLocked(prefix)

	if _, ok := r.cache[prefix]; ok {
		return false
	}
	if _, busy := r.inflight[prefix]; busy {
		return true
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.cancel = cancel
	r.inflight[prefix] = struct{}{}
	r.wg.Add(1)
	go r.lookup(lookupCtx, prefix)
	return true
}

func (r *Resolver) lookup(ctx context.Context, prefix string) {
	defer r.wg.Done()

	meta, err := r.backend.ResolveCardMetadata(ctx, prefix)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, prefix)

	if err != nil {
		if ctx.Err() == nil {
			r.log.Debug("bin lookup failed", zap.String("bin", prefix), zap.Error(err))
		}
		return
	}
	// stale results for superseded prefixes still warm the cache
	r.cache[prefix] = meta
}

// Current returns the metadata for the prefix observed last, if resolved.
func (r *Resolver) Current() (gatewaydomain.CardMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == "" {
		return gatewaydomain.CardMetadata{}, false
	}
	meta, ok := r.cache[r.current]
	return meta, ok
}

// Busy reports whether a lookup is in flight for the current prefix.
func (r *Resolver) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == "" {
		return false
	}
	_, busy := r.inflight[r.current]
	return busy
}

// Stop cancels any in-flight lookup and waits for it to drain. The cache
// survives; a discarded attempt costs nothing to abandon.
func (r *Resolver) Stop() {
	r.mu.Lock()
	r.supersedeLocked("")
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Resolver) supersedeLocked(next string) {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.current = next
}

func normalizePrefix(digits string) string {
	var b strings.Builder
	for _, r := range digits {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if b.Len() == minPrefixLen {
			break
		}
	}
	if b.Len() < minPrefixLen {
		return ""
	}
	return b.String()
}
