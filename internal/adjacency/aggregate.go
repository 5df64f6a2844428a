package adjacency

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/hupe1980/csrgo/model"
)

// ErrAggregationUnspecified is returned when a builder has no duplicate policy.
var ErrAggregationUnspecified = errors.New("adjacency: aggregation must be specified")

// DuplicateError reports a parallel edge under model.None.
type DuplicateError struct {
	Source model.NodeID
	Target model.NodeID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("adjacency: duplicate relationship %d -> %d", e.Source, e.Target)
}

// Aggregate sorts targets ascending, carrying props along, and applies the
// duplicate policy in place. props may be nil. It returns the surviving
// prefix of both slices and the number of collapsed duplicates.
//
// Under model.Single the first occurrence in input order is kept. Under
// model.Count the surviving property is the multiplicity.
func Aggregate(targets []uint64, props []float64, agg model.Aggregation) ([]uint64, []float64, int, error) {
	if !agg.Valid() {
		return nil, nil, 0, ErrAggregationUnspecified
	}
	if props != nil && len(props) != len(targets) {
		panic("adjacency: targets and properties differ in length")
	}
	if props == nil {
		slices.Sort(targets)
	} else if !slices.IsSorted(targets) {
		sort.Stable(pairs{targets, props})
	}

	w := 0
	for i := range targets {
		if w > 0 && targets[i] == targets[w-1] {
			switch agg {
			case model.None:
				return nil, nil, 0, &DuplicateError{Source: model.NotFound, Target: int64(targets[i])}
			case model.Keep:
			default:
				if props != nil {
					props[w-1] = combine(agg, props[w-1], props[i])
				}
				continue
			}
		}
		targets[w] = targets[i]
		if props != nil {
			props[w] = props[i]
			if agg == model.Count {
				props[w] = 1
			}
		}
		w++
	}

	collapsed := len(targets) - w
	if props != nil {
		props = props[:w]
	}
	return targets[:w], props, collapsed, nil
}

func combine(agg model.Aggregation, acc, v float64) float64 {
	switch agg {
	case model.Sum:
		return acc + v
	case model.Min:
		return math.Min(acc, v)
	case model.Max:
		return math.Max(acc, v)
	case model.Count:
		return acc + 1
	default:
		return acc
	}
}

type pairs struct {
	targets []uint64
	props   []float64
}

func (p pairs) Len() int           { return len(p.targets) }
func (p pairs) Less(i, j int) bool { return p.targets[i] < p.targets[j] }
func (p pairs) Swap(i, j int) {
	p.targets[i], p.targets[j] = p.targets[j], p.targets[i]
	p.props[i], p.props[j] = p.props[j], p.props[i]
}
