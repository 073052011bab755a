package topology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ParseCPUList expands a kernel/libvirt cpu list such as "0-3,8,10-11"
// into sorted, unique CPU indices.
func ParseCPUList(raw string) ([]int, error) {
	seen := map[int]struct{}{}
	for _, item := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		lo, hi, isRange := strings.Cut(item, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("cpu list %q: %w", raw, err)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("cpu list %q: %w", raw, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("cpu list %q: range %s ends before it starts", raw, item)
		}
		for cpu := first; cpu <= last; cpu++ {
			seen[cpu] = struct{}{}
		}
	}

	cpus := make([]int, 0, len(seen))
	for cpu := range seen {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus, nil
}

// FormatCPUs is the inverse of ParseCPUList, collapsing runs into ranges.
func FormatCPUs(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	sorted := make([]int, len(cpus))
	copy(sorted, cpus)
	sort.Ints(sorted)
	sorted = dedupeSorted(sorted)

	parts := make([]string, 0, len(sorted))
	start := sorted[0]
	prev := sorted[0]
	for i := 1; i < len(sorted); i++ {
		current := sorted[i]
		if current == prev+1 {
			prev = current
			continue
		}
		parts = append(parts, formatRange(start, prev))
		start = current
		prev = current
	}
	parts = append(parts, formatRange(start, prev))

	return strings.Join(parts, ",")
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

func dedupeSorted(values []int) []int {
	if len(values) == 0 {
		return values
	}
	result := make([]int, 0, len(values))
	last := values[0] - 1
	for _, value := range values {
		if value == last {
			continue
		}
		result = append(result, value)
		last = value
	}
	return result
}
