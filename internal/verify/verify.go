// Package verify checks a live store against the invariants a dimension's
// closure table and a space's fact table must hold (§8). Grounded on
// internal/verifier's Verifier/VerifyResult/VerifyStats shape, adapted from
// a source/destination row comparison to a single-store integrity audit:
// Menger has one backend, not a migration's two, so each "table" check
// becomes a dimension's closure check or a space's fact check instead.
package verify

import (
	"fmt"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/logger"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

// Method selects how thoroughly Verify checks a store.
type Method string

const (
	// MethodFull runs every check, including the per-node key/name
	// round-trip, which is O(nodes) in queries against the store.
	MethodFull Method = "full"
	// MethodQuick skips the round-trip and dice-sum checks, keeping only
	// the aggregate closure and fact-table checks (each a handful of
	// queries regardless of store size).
	MethodQuick Method = "quick"
	// MethodSkip runs nothing.
	MethodSkip Method = "skip"
)

// Result holds one named check's outcome.
type Result struct {
	Check   string
	Passed  bool
	Details []string
}

// Stats summarizes a full Verify run.
type Stats struct {
	ChecksRun    int
	ChecksPassed int
	ChecksFailed int
	Method       Method
}

// Verifier audits dimensions and spaces of one store for the invariants of
// §8 ("Invariants (for all X)").
type Verifier struct {
	store  *backend.Session
	method Method
	log    *logger.Logger
}

// New constructs a Verifier bound to store. method defaults to MethodFull
// when empty; log defaults to logger.NewDefault().
func New(store *backend.Session, method Method, log *logger.Logger) *Verifier {
	if method == "" {
		method = MethodFull
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{store: store, method: method, log: log}
}

// VerifyDimension checks one dimension's closure table (§8 first invariant)
// and, at MethodFull, the key/name round-trip (§8 third invariant: "
// dim.key(dim.coord(x), create=true) then dim.name_tuple(id) yields a
// tuple equal to the canonicalized x").
func (v *Verifier) VerifyDimension(dim *dimension.Tree) (*Result, error) {
	if v.method == MethodSkip {
		return &Result{Check: "dimension:" + dim.Label, Passed: true}, nil
	}

	violations, err := v.store.VerifyClosure(dim)
	if err != nil {
		return nil, fmt.Errorf("verify closure %s: %w", dim.Label, err)
	}

	if v.method == MethodFull {
		roundTrip, err := v.verifyRoundTrip(dim)
		if err != nil {
			return nil, fmt.Errorf("verify round trip %s: %w", dim.Label, err)
		}
		violations = append(violations, roundTrip...)
	}

	result := &Result{Check: "dimension:" + dim.Label, Passed: len(violations) == 0, Details: violations}
	v.logResult(result)
	return result, nil
}

// verifyRoundTrip re-derives every non-root node's coordinate via GetName,
// then re-resolves that coordinate via Key, and checks the resolved ID
// matches the original.
func (v *Verifier) verifyRoundTrip(dim *dimension.Tree) ([]string, error) {
	parents, err := v.store.GetParents(dim)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, p := range parents {
		coord, err := dim.GetName(p.ID)
		if err != nil {
			return nil, err
		}
		id, ok, err := dim.Key(coord, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			violations = append(violations, fmt.Sprintf("node %d: name_tuple round trip found no coordinate", p.ID))
			continue
		}
		if id != p.ID {
			violations = append(violations, fmt.Sprintf("node %d: key(name_tuple(id)) resolved to %d instead", p.ID, id))
		}
	}
	return violations, nil
}

// VerifySpace checks a space's fact table (§8 second invariant) and, at
// MethodFull, that a no-filter dice's total matches the fact table's raw
// sum for every stored measure (§8 fourth invariant).
func (v *Verifier) VerifySpace(sp *space.Space) (*Result, error) {
	if v.method == MethodSkip {
		return &Result{Check: "space:" + sp.Name, Passed: true}, nil
	}

	var dimCols []string
	var dims []*dimension.Tree
	for el := sp.Dimensions.Front(); el != nil; el = el.Next() {
		dimCols = append(dimCols, el.Key)
		dims = append(dims, el.Value)
	}
	var sumNames []string
	for el := sp.Measures.Front(); el != nil; el = el.Next() {
		if _, ok := el.Value.(*measure.Sum); ok {
			sumNames = append(sumNames, el.Key)
		}
	}

	violations, err := v.store.VerifyFact(sp.Name, dimCols, dims, sumNames)
	if err != nil {
		return nil, fmt.Errorf("verify fact %s: %w", sp.Name, err)
	}

	if v.method == MethodFull {
		sumViolations, err := v.verifyDiceSum(sp, sumNames)
		if err != nil {
			return nil, fmt.Errorf("verify dice sum %s: %w", sp.Name, err)
		}
		violations = append(violations, sumViolations...)
	}

	result := &Result{Check: "space:" + sp.Name, Passed: len(violations) == 0, Details: violations}
	v.logResult(result)
	return result, nil
}

// verifyDiceSum compares a no-filter Sum dice of each stored measure
// against a raw SUM over the fact table (§8 "For any selection S with no
// filter, the sum of each stored measure across all dice rows equals its
// sum across the fact table").
func (v *Verifier) verifyDiceSum(sp *space.Space, sumNames []string) ([]string, error) {
	if len(sumNames) == 0 {
		return nil, nil
	}
	items := make([]types.SelectItem, len(sumNames))
	for i, name := range sumNames {
		items[i] = types.SumItem(name)
	}
	rows, err := sp.Dice(items, nil, types.DimFormatTuple, false)
	if err != nil {
		return nil, err
	}

	var diced []float64
	if len(rows) > 0 {
		diced = make([]float64, len(sumNames))
		for _, row := range rows {
			for i := range sumNames {
				diced[i] += row[i].Value
			}
		}
	} else {
		diced = make([]float64, len(sumNames))
	}

	var violations []string
	for i, name := range sumNames {
		raw, err := v.store.SumMeasure(sp.Name, name)
		if err != nil {
			return nil, err
		}
		if diced[i] != raw {
			violations = append(violations, fmt.Sprintf("measure %q: dice total %v != fact table sum %v", name, diced[i], raw))
		}
	}
	return violations, nil
}

// Verify audits every dimension then every space, in that order, returning
// aggregate Stats. It stops at the first failing check, mirroring
// Verifier.Verify's fail-fast behavior in the source this is adapted from.
func (v *Verifier) Verify(dims map[string]*dimension.Tree, spaces map[string]*space.Space) (*Stats, error) {
	stats := &Stats{Method: v.method}
	if v.method == MethodSkip {
		v.log.Info("verification skipped (method=skip)")
		return stats, nil
	}

	v.log.Infof("starting verification (method=%s) for %d dimensions, %d spaces", v.method, len(dims), len(spaces))

	for _, dim := range dims {
		result, err := v.VerifyDimension(dim)
		if err != nil {
			return stats, err
		}
		stats.ChecksRun++
		if result.Passed {
			stats.ChecksPassed++
		} else {
			stats.ChecksFailed++
			return stats, fmt.Errorf("verification failed for %s: %v", result.Check, result.Details)
		}
	}

	for _, sp := range spaces {
		result, err := v.VerifySpace(sp)
		if err != nil {
			return stats, err
		}
		stats.ChecksRun++
		if result.Passed {
			stats.ChecksPassed++
		} else {
			stats.ChecksFailed++
			return stats, fmt.Errorf("verification failed for %s: %v", result.Check, result.Details)
		}
	}

	v.log.Infof("verification complete: %d checks run, %d passed, %d failed", stats.ChecksRun, stats.ChecksPassed, stats.ChecksFailed)
	return stats, nil
}

func (v *Verifier) logResult(r *Result) {
	if r.Passed {
		v.log.Debugf("verification passed for %s", r.Check)
		return
	}
	v.log.Errorf("verification failed for %s: %v", r.Check, r.Details)
}
