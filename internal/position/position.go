// Package position allocates fractional ordering keys for tasks inside a lane.
//
// A key only has to sort strictly between the keys of the two tasks that will
// flank the moved task, so a move never renumbers the rest of the lane.
// Repeated inserts into the same gap halve it each time; once float64
// resolution runs out the result equals a neighbour. No rebalancing is done.
package position

// Baseline 空泳道的起始位置，也是尾部追加的步长
// Baseline is the key of the first task in an empty lane and the step used
// when appending to the tail.
const Baseline = 10000.0

// Between returns a key that sorts between before and after. A nil bound
// means there is no neighbour on that side.
func Between(before, after *float64) float64 {
	switch {
	case before == nil && after == nil:
		return Baseline
	case before == nil:
		if *after <= 0 {
			return *after - Baseline
		}
		return *after / 2
	case after == nil:
		return *before + Baseline
	default:
		return (*before + *after) / 2
	}
}

// Collapsed reports whether got failed to land strictly between its
// neighbours, i.e. the gap is exhausted at float64 resolution.
func Collapsed(before, after *float64, got float64) bool {
	if before != nil && got <= *before {
		return true
	}
	if after != nil && got >= *after {
		return true
	}
	return false
}

// Of returns a pointer to v, for callers building optional bounds.
func Of(v float64) *float64 {
	return &v
}
