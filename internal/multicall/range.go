package multicall

import "fmt"

// Range is an inclusive index range into a call list.
type Range struct {
	From int
	To   int
}

// SplitRange splits total calls into chunks of at most size.
func SplitRange(total, size int) ([]Range, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if total < 0 {
		return nil, fmt.Errorf("total must be >= 0")
	}

	ranges := make([]Range, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := start + size - 1
		if end >= total {
			end = total - 1
		}
		ranges = append(ranges, Range{From: start, To: end})
	}
	return ranges, nil
}
