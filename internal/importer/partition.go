package importer

import (
	"fmt"

	"github.com/hupe1980/csrgo/internal/bitset"
	"github.com/hupe1980/csrgo/internal/conv"
)

// Band is the contiguous node range [Start, End) owned by one worker.
type Band struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of nodes in b.
func (b Band) Len() int64 { return b.End - b.Start }

// Contains reports whether node lies in b.
func (b Band) Contains(node int64) bool { return node >= b.Start && node < b.End }

// Partition splits [0, nodeCount) into at most shards equally sized bands.
// The last band may be shorter. It returns nil when nodeCount is 0.
func Partition(nodeCount int64, shards int) []Band {
	if nodeCount <= 0 || shards <= 0 {
		return nil
	}
	width := bandWidth(nodeCount, shards)
	bands := make([]Band, 0, shards)
	for start := int64(0); start < nodeCount; start += width {
		bands = append(bands, Band{Index: len(bands), Start: start, End: min(start+width, nodeCount)})
	}
	return bands
}

func bandWidth(nodeCount int64, shards int) int64 {
	s := int64(shards)
	return (nodeCount + s - 1) / s
}

// VerifyPartition checks that bands cover [0, nodeCount) exactly once.
func VerifyPartition(bands []Band, nodeCount int64) error {
	n, err := conv.Int64ToUint64(nodeCount)
	if err != nil {
		return err
	}
	seen := bitset.New(n)
	for _, b := range bands {
		if b.Start < 0 || b.End > nodeCount || b.Start > b.End {
			return fmt.Errorf("importer: band %d [%d, %d) outside [0, %d)", b.Index, b.Start, b.End, nodeCount)
		}
		for node := b.Start; node < b.End; node++ {
			if seen.TestAndSet(uint64(node)) {
				return fmt.Errorf("importer: node %d owned by more than one band", node)
			}
		}
	}
	if first := seen.FirstClear(); first >= 0 {
		return fmt.Errorf("importer: node %d owned by no band", first)
	}
	return nil
}
