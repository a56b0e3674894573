package dataset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"flowsom/internal/som"
)

// GridLoader materializes a persisted grid by its storage reference.
// Implementations must be safe for concurrent use; case records are
// independent and loaded in parallel.
type GridLoader interface {
	LoadGrid(ctx context.Context, ref string) (*som.Grid, bool, error)
}

// GridCollection maps tube identifiers to grids for one case. Grids are
// lazy: a tube is read from storage on first access and cached for the
// collection's lifetime. Asking for an unknown tube reports absence, not
// an error, since callers routinely probe tube availability.
type GridCollection struct {
	refs   map[string]string
	loader GridLoader

	mu    sync.Mutex
	cache map[string]*som.Grid
}

// NewGridCollection builds a lazy collection over per-tube storage
// references.
func NewGridCollection(refs map[string]string, loader GridLoader) *GridCollection {
	copied := make(map[string]string, len(refs))
	for tube, ref := range refs {
		copied[tube] = ref
	}
	return &GridCollection{
		refs:   copied,
		loader: loader,
		cache:  make(map[string]*som.Grid),
	}
}

// Add registers an already-materialized grid under its tube.
func (c *GridCollection) Add(tube string, g *som.Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[tube] = g
}

// Tubes lists the tubes this collection can produce, sorted.
func (c *GridCollection) Tubes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(c.refs)+len(c.cache))
	for tube := range c.refs {
		seen[tube] = struct{}{}
	}
	for tube := range c.cache {
		seen[tube] = struct{}{}
	}
	tubes := make([]string, 0, len(seen))
	for tube := range seen {
		tubes = append(tubes, tube)
	}
	sort.Strings(tubes)
	return tubes
}

// Get returns the grid for a tube, loading and caching it on first
// access. ok is false when the collection has no such tube.
func (c *GridCollection) Get(ctx context.Context, tube string) (*som.Grid, bool, error) {
	c.mu.Lock()
	if g, ok := c.cache[tube]; ok {
		c.mu.Unlock()
		return g, true, nil
	}
	ref, ok := c.refs[tube]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	g, found, err := c.loader.LoadGrid(ctx, ref)
	if err != nil {
		return nil, false, fmt.Errorf("load tube %s grid %s: %w", tube, ref, err)
	}
	if !found {
		return nil, false, fmt.Errorf("tube %s grid %s is referenced but not stored", tube, ref)
	}

	c.mu.Lock()
	c.cache[tube] = g
	c.mu.Unlock()
	return g, true, nil
}

// Load materializes every tube concurrently.
func (c *GridCollection) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, tube := range c.Tubes() {
		tube := tube
		g.Go(func() error {
			_, _, err := c.Get(ctx, tube)
			return err
		})
	}
	return g.Wait()
}

// Case is one cohort member: its label, diagnostic group and per-tube
// grids. Group-remapping and balancing never mutate a case in place; they
// produce new Case values.
type Case struct {
	Label string
	Group string
	Grids *GridCollection
}
