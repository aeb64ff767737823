// Package profile implements the materialized-view cache of §4.4: for a
// space, a set of Profiles each pinned to a signature (a per-dimension
// projection depth), with the hottest signatures' aggregates pre-computed
// into a narrower "ghost" fact table so a dice that only needs shallow
// depth never scans the full-depth table. Grounded on spec.md §4.4, since
// no profile.py exists in the distilled source to port directly; the
// concurrency shape (one mutex-guarded registry per process; hit counters
// are written through on every query, not flushed periodically) follows internal/event.Bus and internal/backend.Session's
// factRefs registry.
package profile

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

// DefaultCacheRatio is the fraction of a space's row count a profile
// registration pass is allowed to spend materializing ghost spaces
// (§4.4 "budget = backend.size(space) * cache_ratio (default 10%)").
const DefaultCacheRatio = 0.10

// Profile is one materialized projection of a space, trimmed to Signature.
type Profile struct {
	Space     string
	Signature space.Signature
	Hits      int64
	RowCount  int64
	HasSize   bool
	Ghost     *space.Space // nil until Materialize has run at least once
}

// signatureKey serializes a Signature to a stable string (sorted by
// dimension name) for use as a map/DB key.
func signatureKey(sig space.Signature) string {
	names := make([]string, 0, len(sig))
	for name := range sig {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.Itoa(sig[name])
	}
	return strings.Join(parts, "&")
}

// matches reports whether a profile with signature prof can answer a
// query of signature query: every dimension's profile depth must be at
// least the query's depth (§4.4 "Match").
func matches(prof, query space.Signature) bool {
	for dim, depth := range query {
		if prof[dim] < depth {
			return false
		}
	}
	return true
}

// size orders two profiles by "minimum size" (§4.4 "best"): an unknown
// size sorts last so it is never preferred over a measured one.
func (p *Profile) size() int64 {
	if !p.HasSize {
		return 1<<63 - 1
	}
	return p.RowCount
}

// Registry holds the in-process hot set of Profiles for every space of a
// session (§4.4 "_all_profiles", "_hits"), backed by the session's
// profiles table for persistence across registrations.
type Registry struct {
	store      *backend.Session
	cacheRatio float64

	mu       sync.Mutex
	bySpace  map[string]map[string]*Profile // space -> signature key -> Profile
}

// New constructs a Registry bound to store, creating the profiles
// bookkeeping table if absent.
func New(store *backend.Session, cacheRatio float64) (*Registry, error) {
	if cacheRatio <= 0 {
		cacheRatio = DefaultCacheRatio
	}
	if err := store.RegisterProfileStore(); err != nil {
		return nil, err
	}
	return &Registry{store: store, cacheRatio: cacheRatio, bySpace: map[string]map[string]*Profile{}}, nil
}

// Best computes the signature of a query, records a hit against it, and
// returns the smallest currently-hot Profile able to answer it (§4.4
// "best(space, select)"). Returns ok=false if no hot profile matches
// (including when the query signature is all-zero, which doesn't count).
func (r *Registry) Best(sp *space.Space, plan *space.Plan) (*Profile, bool) {
	sig := sp.Signature(plan)

	allZero := true
	for _, d := range sig {
		if d != 0 {
			allZero = false
			break
		}
	}
	if !allZero {
		_ = r.store.RecordHit(sp.Name, signatureKey(sig))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	profiles := r.bySpace[sp.Name]
	var best *Profile
	for _, p := range profiles {
		if p.Ghost == nil {
			continue
		}
		if !matches(p.Signature, sig) {
			continue
		}
		if best == nil || p.size() < best.size() {
			best = p
		}
	}
	return best, best != nil
}

// Dice runs a select/filter query against sp, transparently substituting
// the smallest hot Profile able to answer it (§4.4 "best") in place of
// sp's own full-depth fact table. This is the dice entry point
// cmd/menger/cmd/dice.go calls instead of Space.Dice directly, so that
// every CLI dice query both benefits from and feeds the profile cache.
func (r *Registry) Dice(sp *space.Space, items []types.SelectItem, filters types.Filter, dimFmt types.DimFormat, msrFmt bool) ([][]space.Cell, error) {
	plan, err := sp.BuildPlan(items, filters)
	if err != nil {
		return nil, err
	}
	plan.WithFormat(dimFmt, msrFmt)

	target := sp
	if prof, ok := r.Best(sp, plan); ok && prof.Ghost != nil {
		target = prof.Ghost
	}
	return target.Dice(items, filters, dimFmt, msrFmt)
}

// Register rebuilds the in-memory hot set for a space from persisted hit
// counts (§4.4 "register(space, snapshot)"): profiles are fetched ordered
// by hits descending, and a size budget (cache_ratio of the space's
// current row count) is spent materializing the hottest ones until it
// runs out; the rest are dropped from the hot set. When snapshot is true
// each materialized profile's ghost space is (re)built by Materialize.
func (r *Registry) Register(sp *space.Space, dimensions map[string]*dimension.Tree, snapshot bool) error {
	r.mu.Lock()
	r.bySpace[sp.Name] = map[string]*Profile{}
	r.mu.Unlock()

	records, err := r.store.ListProfiles(sp.Name)
	if err != nil {
		return err
	}
	total, err := r.store.SpaceSize(sp.Name)
	if err != nil {
		return err
	}
	budget := float64(total) * r.cacheRatio

	for _, rec := range records {
		sig := parseSignatureKey(rec.Signature)
		p := &Profile{Space: sp.Name, Signature: sig, Hits: rec.Hits, RowCount: rec.RowCount, HasSize: rec.HasSize}

		if rec.HasSize && budget > 0 {
			if snapshot {
				if err := r.Materialize(sp, dimensions, p); err != nil {
					return err
				}
				budget -= float64(p.RowCount)
			}
			r.mu.Lock()
			r.bySpace[sp.Name][rec.Signature] = p
			r.mu.Unlock()
			continue
		}
		// budget exhausted or size unknown: drop from the hot set, matching
		// "reset (empty) remaining profiles so they drop out of the hot set".
	}
	return nil
}

func parseSignatureKey(key string) space.Signature {
	sig := space.Signature{}
	if key == "" {
		return sig
	}
	for _, part := range strings.Split(key, "&") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		depth, _ := strconv.Atoi(kv[1])
		sig[kv[0]] = depth
	}
	return sig
}

// Materialize (re)builds a profile's ghost space: a clone of sp with every
// dimension's effective depth trimmed to the profile's signature, and
// re-snapshots sp's full-depth aggregate into it (§4.4 "snapshot(self)").
// The ghost is not added to any global space registry — it exists only as
// p.Ghost — matching "does not appear in the global space list".
func (r *Registry) Materialize(sp *space.Space, dims map[string]*dimension.Tree, p *Profile) error {
	ghost := space.New(ghostName(sp.Name, p.Signature), r.store)

	var items []types.SelectItem
	for el := sp.Dimensions.Front(); el != nil; el = el.Next() {
		ghost.AddDimension(el.Value)
		depth := p.Signature[el.Key]
		if depth <= 0 {
			continue
		}
		items = append(items, types.LevelItem(el.Key, depth))
	}
	for el := sp.Measures.Front(); el != nil; el = el.Next() {
		ghost.AddMeasure(el.Value)
		// Only stored measures have a fact-table column to sum from; a
		// computed measure is re-derived from the ghost's stored measures
		// whenever it is itself selected.
		if _, ok := el.Value.(*measure.Sum); ok {
			items = append(items, types.SumItem(el.Key))
		}
	}

	if err := ghost.Register(); err != nil {
		return err
	}
	if err := sp.Snapshot(ghost, items, nil); err != nil {
		return err
	}

	rows, err := r.store.SpaceSize(ghost.Name)
	if err != nil {
		return err
	}
	p.RowCount = rows
	p.HasSize = true
	p.Ghost = ghost
	return r.store.SetProfileSize(sp.Name, signatureKey(p.Signature), rows)
}

func ghostName(spaceName string, sig space.Signature) string {
	return spaceName + "__profile_" + signatureKey(sig)
}

// Sync flushes hit counters to the backend (§4.4 "sync()"). RecordHit
// already writes through on every Best call, so this is a no-op kept for
// parity with the spec's explicit periodic-flush entry point — a future
// in-memory batching layer would hang its flush here.
func (r *Registry) Sync() error { return nil }
