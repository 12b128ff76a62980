// Package profiling accumulates wall time per named section within one
// simulation frame.
package profiling

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Section is the accumulated time and call count of one tracked name.
type Section struct {
	Total time.Duration
	Calls int
}

var (
	mu       sync.Mutex
	sections = make(map[string]Section)
)

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer profiling.Track("subsystem.Operation")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		s := sections[name]
		s.Total += d
		s.Calls++
		sections[name] = s
		mu.Unlock()
	}
}

// ResetFrame clears the totals. The engine calls it at the start of each tick.
func ResetFrame() {
	mu.Lock()
	clear(sections)
	mu.Unlock()
}

// Snapshot returns a copy of the current totals.
func Snapshot() map[string]Section {
	mu.Lock()
	defer mu.Unlock()
	return maps.Clone(sections)
}

// Sum adds up every section whose name starts with prefix ("" for all).
// Nested sections are counted in both the caller and the callee.
func Sum(prefix string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	var d time.Duration
	for name, s := range sections {
		if strings.HasPrefix(name, prefix) {
			d += s.Total
		}
	}
	return d
}

// TopN formats the n slowest sections of the frame, e.g.
// "fluid.Pass:4.2ms(3), meshing.BuildChunk:2.1ms(9)".
func TopN(n int) string {
	ss := Snapshot()
	names := slices.Collect(maps.Keys(ss))
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(ss[b].Total, ss[a].Total); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	n = min(n, len(names))
	var b strings.Builder
	for i, name := range names[:n] {
		if i > 0 {
			b.WriteString(", ")
		}
		s := ss[name]
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(formatMs(s.Total))
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(s.Calls))
		b.WriteByte(')')
	}
	return b.String()
}

// formatMs prints d in milliseconds truncated to one decimal.
func formatMs(d time.Duration) string {
	ms := math.Trunc(float64(d.Microseconds())/100) / 10
	return strconv.FormatFloat(ms, 'f', -1, 64) + "ms"
}
