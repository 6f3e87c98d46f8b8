package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDistribution reads a pattern such as "2+2+1".
func ParseDistribution(pattern string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(pattern), "+")
	blocks := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid distribution pattern %q", pattern)
		}
		blocks = append(blocks, n)
	}
	return blocks, nil
}

// Decompose splits weekly hours into block lengths.
//
// With EnforceDistributionPatterns and a pattern summing to hours, the pattern is returned
// verbatim. Otherwise listed blocks that still fit are kept (3s become 2+1) and the rest is
// packed as 2s with a trailing 1.
func Decompose(distribution []int, hours int, rules GlobalRules) []int {
	if hours <= 0 {
		return nil
	}
	if rules.EnforceDistributionPatterns && len(distribution) > 0 && sum(distribution) == hours {
		return append([]int(nil), distribution...)
	}

	blocks := make([]int, 0, hours)
	remaining := hours
	for _, b := range distribution {
		if b <= 0 || b > remaining {
			continue
		}
		blocks = append(blocks, splitBlock(b, rules)...)
		remaining -= b
	}
	return append(blocks, defaultSplit(remaining, rules)...)
}

func splitBlock(length int, rules GlobalRules) []int {
	if length == 3 || length > maxBlock(rules) {
		return defaultSplit(length, rules)
	}
	return []int{length}
}

func defaultSplit(hours int, rules GlobalRules) []int {
	size := 2
	if m := maxBlock(rules); m < size {
		size = m
	}
	blocks := make([]int, 0, hours/size+1)
	for hours >= size {
		blocks = append(blocks, size)
		hours -= size
	}
	for ; hours > 0; hours-- {
		blocks = append(blocks, 1)
	}
	return blocks
}

func maxBlock(rules GlobalRules) int {
	if rules.MaximumBlockSize > 0 {
		return rules.MaximumBlockSize
	}
	return 3
}

// clubBlocks packs club hours into whole Perşembe windows. Patterns and maximumBlockSize do
// not apply: a club meets once a day, so split hours could never share the window.
func clubBlocks(hours int) []int {
	var blocks []int
	for ; hours > 0; hours -= clubWindowLength {
		blocks = append(blocks, min(hours, clubWindowLength))
	}
	return blocks
}

// taskPools buckets tasks by placement pass.
type taskPools struct {
	all    []*Task
	club   []*Task
	blocks []*Task
	single []*Task
}

func buildTasks(mappings []*Mapping, hours map[mappingKey]int, rules GlobalRules) taskPools {
	var pools taskPools
	for _, m := range mappings {
		res := ResourceFor(m.SubjectName)
		protected := IsProtectedSubject(m.SubjectName)
		lengths := Decompose(m.Distribution, hours[m.key()], rules)
		if m.IsClub() {
			lengths = clubBlocks(hours[m.key()])
		}
		for i, length := range lengths {
			t := &Task{
				ID:        fmt.Sprintf("%s#%d", m.ID, i),
				Mapping:   m,
				Length:    length,
				resource:  res,
				protected: protected,
			}
			pools.all = append(pools.all, t)
			switch {
			case m.IsClub():
				pools.club = append(pools.club, t)
			case length > 1:
				pools.blocks = append(pools.blocks, t)
			default:
				pools.single = append(pools.single, t)
			}
		}
	}
	return pools
}
