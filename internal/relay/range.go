package relay

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// NextRange computes the next unscanned range above cursor, capped at
// maxRange blocks. Log-query endpoints reject unbounded ranges, and the cap
// also bounds memory for a single scan. The boolean is false when head has
// not moved past the cursor.
func NextRange(cursor, head, maxRange uint64) (BlockRange, bool, error) {
	if maxRange == 0 {
		return BlockRange{}, false, fmt.Errorf("max range must be greater than zero")
	}
	if head <= cursor {
		return BlockRange{}, false, nil
	}

	from := cursor + 1
	to := head
	if limit := from + maxRange - 1; to > limit {
		to = limit
	}
	return BlockRange{From: from, To: to}, true, nil
}
