// Package label maintains the LabelIdCache and resolves hierarchical
// label paths to provider label ids, creating missing segments on demand
// (spec §4.7).
package label

import (
	"context"
	"strings"
	"sync"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
)

// Prefix is the root of the label paths the classifier and clusterer
// generate. EnsureLabel does not check it: it resolves or creates whatever
// path it is given, including an edited label outside this root.
const Prefix = "AutoManaged"

// Cache is the LabelIdCache: a case-insensitive, case-preserving map from
// label path to provider-assigned id, backed by a Client for creation and
// server-listing refresh.
type Cache struct {
	client gmailapi.Client

	mu        sync.Mutex
	byLower   map[string]string // lowercase path -> id
	preserved map[string]string // lowercase path -> original-case path
	refreshed bool
}

func New(client gmailapi.Client) *Cache {
	return &Cache{
		client:    client,
		byLower:   make(map[string]string),
		preserved: make(map[string]string),
	}
}

// Seed preloads the cache from an already-fetched server label listing
// (path -> id), used on resume from RunState.CreatedLabelIDs (spec §4.10).
func (c *Cache) Seed(idsByPath map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, id := range idsByPath {
		lower := strings.ToLower(path)
		c.byLower[lower] = id
		c.preserved[lower] = path
	}
}

// EnsureLabel implements the four-step resolution in spec §4.7:
//  1. cache hit (case-insensitive) -> return
//  2. if the server listing was refreshed this run, check it case-insensitively
//  3. attempt creation; on conflict, refresh the listing and resolve case-insensitively
//  4. before creating a nested path, ensure each parent segment exists first
func (c *Cache) EnsureLabel(ctx context.Context, path string) (string, error) {
	segments := strings.Split(path, "/")
	var built string
	var id string
	for i, seg := range segments {
		if built == "" {
			built = seg
		} else {
			built = built + "/" + seg
		}
		var err error
		id, err = c.ensureSegment(ctx, built)
		if err != nil {
			return "", err
		}
		_ = i
	}
	return id, nil
}

func (c *Cache) ensureSegment(ctx context.Context, path string) (string, error) {
	lower := strings.ToLower(path)

	c.mu.Lock()
	if id, ok := c.byLower[lower]; ok {
		c.mu.Unlock()
		return id, nil
	}
	refreshed := c.refreshed
	c.mu.Unlock()

	if refreshed {
		if id, ok, err := c.lookupServer(ctx, lower); err != nil {
			return "", err
		} else if ok {
			c.store(lower, path, id)
			return id, nil
		}
	}

	created, err := c.client.CreateLabel(ctx, path)
	if err == nil {
		c.store(lower, path, created.Id)
		return created.Id, nil
	}

	// Creation failed, most likely a conflict because the label already
	// exists (possibly created by a concurrent run, or by this run's own
	// earlier parent-segment creation racing a stale cache). Refresh the
	// server listing once and resolve case-insensitively (spec §4.7 step 3).
	if id, ok, rerr := c.refreshAndLookup(ctx, lower); rerr == nil && ok {
		c.store(lower, path, id)
		return id, nil
	}

	return "", apperr.RemotePermanent("CreateLabel:"+path, err)
}

func (c *Cache) lookupServer(ctx context.Context, lower string) (string, bool, error) {
	labels, err := c.client.ListLabels(ctx)
	if err != nil {
		return "", false, err
	}
	for _, l := range labels {
		if strings.ToLower(l.Name) == lower {
			return l.Id, true, nil
		}
	}
	return "", false, nil
}

func (c *Cache) refreshAndLookup(ctx context.Context, lower string) (string, bool, error) {
	id, ok, err := c.lookupServer(ctx, lower)
	c.mu.Lock()
	c.refreshed = true
	c.mu.Unlock()
	return id, ok, err
}

func (c *Cache) store(lower, original, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLower[lower] = id
	c.preserved[lower] = original
}

// Snapshot returns the current path->id map for RunState persistence.
func (c *Cache) Snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.byLower))
	for lower, id := range c.byLower {
		out[c.preserved[lower]] = id
	}
	return out
}
