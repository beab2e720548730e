package logtree

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// stepPrefixPattern matches the step sequence number of a log file name.
// Format: "12_Run tests.txt"
var stepPrefixPattern = regexp.MustCompile(`^(\d+)_`)

// StepNumber returns the numeric prefix before the first underscore of the
// last "/" segment of key, or 0 when there is none.
// Input:  "build/10_Run tests.txt"
// Output: 10
func StepNumber(key string) int {
	m := stepPrefixPattern.FindStringSubmatch(key[strings.LastIndex(key, "/")+1:])
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return math.MaxInt
		}
		return 0
	}
	return n
}

// SortByStep sorts keys ascending by StepNumber. Keys with equal numbers keep
// their relative order.
func SortByStep(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return StepNumber(keys[i]) < StepNumber(keys[j])
	})
}
