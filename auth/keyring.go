package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// KeySource resolves signing keys by issuer and key id.
type KeySource interface {
	GetKey(ctx context.Context, issuer, kid string) (SigningKey, error)
}

// Keyring routes key lookups to the cache of each issuer.
type Keyring struct {
	caches map[string]*KeyCache
	order  []*KeyCache
}

var _ KeySource = (*Keyring)(nil)

// NewKeyring creates a keyring. A later cache for an already present
// issuer is ignored.
func NewKeyring(caches ...*KeyCache) *Keyring {
	k := &Keyring{caches: make(map[string]*KeyCache, len(caches))}
	for _, c := range caches {
		if _, dup := k.caches[c.Issuer()]; dup {
			continue
		}
		k.caches[c.Issuer()] = c
		k.order = append(k.order, c)
	}
	return k
}

// GetKey returns the key kid of issuer.
func (k *Keyring) GetKey(ctx context.Context, issuer, kid string) (SigningKey, error) {
	c, ok := k.caches[issuer]
	if !ok {
		return SigningKey{}, fmt.Errorf("%w: no key set for issuer %s", ErrKeyNotFound, issuer)
	}
	return c.GetKey(ctx, kid)
}

// Cache returns the cache of issuer.
func (k *Keyring) Cache(issuer string) (*KeyCache, bool) {
	c, ok := k.caches[issuer]
	return c, ok
}

// Caches returns every cache in registration order.
func (k *Keyring) Caches() []*KeyCache {
	out := make([]*KeyCache, len(k.order))
	copy(out, k.order)
	return out
}

// Warm fetches every key set concurrently. It returns the failures joined;
// a failed issuer does not stop the others.
func (k *Keyring) Warm(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(4)
	for _, c := range k.order {
		g.Go(func() error {
			if err := c.Warm(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Run runs the background refresh of every cache until ctx is done.
func (k *Keyring) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range k.order {
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}
