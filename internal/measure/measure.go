// Package measure implements the three measure kinds of §4.5: stored Sum
// measures and the two Computed measures (Average, Difference), plus the
// streaming Aggregator variant of Sum and Average. Grounded directly on
// menger/measure.py — the Go port keeps the same type hierarchy (a base
// contract implemented by Sum and by each Computed subclass) but expresses
// "subclass" as a small set of concrete types behind the Measure interface,
// since Go has no class inheritance.
package measure

import (
	"fmt"
	"strconv"

	"github.com/mengerdb/menger/internal/types"
)

// ValueType is the numeric type a Sum measure stores.
type ValueType int

const (
	ValueFloat ValueType = iota
	ValueInt
)

func (v ValueType) String() string {
	switch v {
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Measure is satisfied by both Sum and every Computed variant. Measures
// are compared and hashed by name alone (menger/measure.py's __eq__/__hash__).
type Measure interface {
	Name() string
}

// Equal reports whether two measures share a name.
func Equal(a, b Measure) bool {
	return a.Name() == b.Name()
}

// Sum is a stored measure: increment(a, b) = a + b (§4.5).
type Sum struct {
	name string
	Type ValueType
}

// NewSum constructs a Sum measure of the given numeric type.
func NewSum(name string, valueType ValueType) *Sum {
	return &Sum{name: name, Type: valueType}
}

// Name returns the measure's label.
func (s *Sum) Name() string { return s.name }

// Increment implements the Sum's upsert-time combination rule.
func (s *Sum) Increment(oldValue, newValue float64) float64 {
	return oldValue + newValue
}

// Format renders a value the way §4.5 calls out ("formatter localized for
// floats"): two decimal places for float measures, a plain integer for int
// measures.
func (s *Sum) Format(value float64) string {
	if s.Type == ValueInt {
		return strconv.FormatInt(int64(value), 10)
	}
	return fmt.Sprintf("%.2f", value)
}

// Aggregator returns a fresh streaming accumulator for this measure.
func (s *Sum) Aggregator() Aggregator { return &sumAggregator{} }

// Computed is a measure whose value is derived from other measures in the
// same space at query time (§4.5, §9 "Computed-measure DAG").
type Computed interface {
	Measure
	// Args names, in order, the measures this computation reads from.
	Args() []string
	// Compute evaluates the result given values for Args(), in that order.
	Compute(args ...float64) (float64, error)
}

// Average computes total/count, or 0 when count is 0 (§4.5).
type Average struct {
	name           string
	totalArg       string
	countArg       string
}

// NewAverage constructs an Average measure over the named total and count
// arguments.
func NewAverage(name, totalArg, countArg string) *Average {
	return &Average{name: name, totalArg: totalArg, countArg: countArg}
}

func (a *Average) Name() string     { return a.name }
func (a *Average) Args() []string   { return []string{a.totalArg, a.countArg} }

// Compute expects exactly two values: total, then count.
func (a *Average) Compute(args ...float64) (float64, error) {
	if len(args) != 2 {
		return 0, types.NewInvariantError("average %q: expected 2 args (total, count), got %d", a.name, len(args))
	}
	total, count := args[0], args[1]
	if count == 0 {
		return 0, nil
	}
	return total / count, nil
}

// Aggregator returns a streaming accumulator: total/count, or 0 if the
// stream is empty.
func (a *Average) Aggregator() Aggregator { return &averageAggregator{} }

// Difference computes a - b (§4.5).
type Difference struct {
	name    string
	minuend string
	subtrahend string
}

// NewDifference constructs a Difference measure over the named operands,
// computing minuend - subtrahend.
func NewDifference(name, minuend, subtrahend string) *Difference {
	return &Difference{name: name, minuend: minuend, subtrahend: subtrahend}
}

func (d *Difference) Name() string   { return d.name }
func (d *Difference) Args() []string { return []string{d.minuend, d.subtrahend} }

// Compute expects exactly two values: minuend, then subtrahend.
func (d *Difference) Compute(args ...float64) (float64, error) {
	if len(args) != 2 {
		return 0, types.NewInvariantError("difference %q: expected 2 args, got %d", d.name, len(args))
	}
	return args[0] - args[1], nil
}
