package charts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Stats summarizes a numeric series.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Sum   float64 `json:"sum"`
}

func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{Count: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		s.Sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = s.Sum / float64(len(values))
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("min %s, max %s, mean %s, sum %s",
		FormatNumber(s.Min), FormatNumber(s.Max), FormatNumber(s.Mean), FormatNumber(s.Sum))
}

// Bin is one histogram bucket covering [Low, High).
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

func (b Bin) Label() string {
	return FormatNumber(b.Low) + "-" + FormatNumber(b.High)
}

// Bins splits values into n equal-width buckets. The last bucket is closed.
// NaN and infinite values are not counted.
func Bins(values []float64, n int) []Bin {
	if n < 1 {
		n = 1
	}
	kept := values[:0:0]
	for _, v := range values {
		if finite(v) {
			kept = append(kept, v)
		}
	}
	values = kept
	if len(values) == 0 {
		return nil
	}
	st := Summarize(values)
	if st.Min == st.Max {
		return []Bin{{Low: st.Min, High: st.Max, Count: len(values)}}
	}

	width := (st.Max - st.Min) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = st.Min + float64(i)*width
		bins[i].High = st.Min + float64(i+1)*width
	}
	bins[n-1].High = st.Max

	for _, v := range values {
		idx := int((v - st.Min) / width)
		idx = max(0, min(idx, n-1))
		bins[idx].Count++
	}
	return bins
}

// MonthNames are the tick labels for month-of-year charts.
var MonthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthCounts counts timestamps per month of year, January first.
func MonthCounts(times []time.Time) [12]int {
	var counts [12]int
	for _, t := range times {
		counts[t.Month()-1]++
	}
	return counts
}

// PeakAndTrough returns the indexes of the largest and smallest values.
// Ties resolve to the earliest index.
func PeakAndTrough[T int | float64](values []T) (peak, trough int) {
	for i, v := range values {
		if v > values[peak] {
			peak = i
		}
		if v < values[trough] {
			trough = i
		}
	}
	return peak, trough
}

// Frequency is the number of occurrences of one category.
type Frequency struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Frequencies counts labels, most frequent first and alphabetical within ties.
func Frequencies(labels []string) []Frequency {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	out := make([]Frequency, 0, len(counts))
	for l, c := range counts {
		out = append(out, Frequency{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Share is one slice of a pie.
type Share struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// Shares computes each value's percentage of the total.
func Shares(labels []string, values []float64) ([]Share, float64) {
	var total float64
	for _, v := range values {
		total += v
	}
	out := make([]Share, len(values))
	for i, v := range values {
		out[i] = Share{Label: labels[i], Value: v}
		if total != 0 {
			out[i].Percent = v / total * 100
		}
	}
	return out, total
}

// FormatShares renders "label: value (pct%)" pairs.
func FormatShares(shares []Share) string {
	parts := make([]string, len(shares))
	for i, s := range shares {
		parts[i] = fmt.Sprintf("%s: %s (%.1f%%)", s.Label, FormatNumber(s.Value), s.Percent)
	}
	return strings.Join(parts, "; ")
}
