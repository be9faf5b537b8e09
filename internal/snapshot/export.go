package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/litescript/ls-galaxy/internal/starfield"
)

// Stats is the JSON-serializable summary of a generated dataset.
type Stats struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Tier        string         `json:"tier"`
	Seed        uint64         `json:"seed"`
	Stars       int            `json:"stars"`
	Impostors   int            `json:"impostors"`
	DurationMS  int64          `json:"duration_ms"`
	Populations []SegmentStats `json:"populations"`
}

// SegmentStats describes one population of the dataset.
type SegmentStats struct {
	Population  string  `json:"population"`
	Offset      int     `json:"offset"`
	Count       int     `json:"count"`
	Drawn       int     `json:"drawn"`
	MeanSize    float64 `json:"mean_size"`
	MaxRadius   float64 `json:"max_planar_radius"`
	MeanHeight  float64 `json:"mean_abs_height"`
	MeanFlicker float64 `json:"mean_flicker"`
}

// ExportStats summarizes d and its impostor. Drawn counts come from the
// draw ranges at the dataset's own tier.
func ExportStats(d, impostor *starfield.Dataset, seed uint64, took time.Duration) *Stats {
	s := &Stats{
		GeneratedAt: time.Now().UTC(),
		Seed:        seed,
		Stars:       d.Len(),
		Impostors:   impostor.Len(),
		DurationMS:  took.Milliseconds(),
	}
	if d == nil {
		return s
	}
	s.Tier = d.Tier.String()

	ranges := starfield.PopulationRanges(d, d.Tier)
	for i, seg := range d.Segments {
		st := SegmentStats{
			Population: seg.Population,
			Offset:     seg.Offset,
			Count:      seg.Count,
		}
		if i < len(ranges) {
			st.Drawn = ranges[i].Count
		}
		if seg.Count > 0 {
			sizes := make([]float64, seg.Count)
			heights := make([]float64, seg.Count)
			flickers := make([]float64, seg.Count)
			for j := range seg.Count {
				star := d.Star(seg.Offset + j)
				sizes[j] = float64(star.Size)
				heights[j] = math.Abs(float64(star.Y))
				flickers[j] = float64(star.Flicker)
				st.MaxRadius = math.Max(st.MaxRadius, math.Hypot(float64(star.X), float64(star.Z)))
			}
			st.MeanSize = stat.Mean(sizes, nil)
			st.MeanHeight = stat.Mean(heights, nil)
			st.MeanFlicker = stat.Mean(flickers, nil)
		}
		s.Populations = append(s.Populations, st)
	}
	return s
}

// WriteJSON writes the stats as indented JSON.
func (s *Stats) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteSummaryTable writes a text table to w.
func (s *Stats) WriteSummaryTable(w io.Writer) {
	fmt.Fprintf(w, "Galaxy @ %s  tier=%s seed=%d\n", s.GeneratedAt.Format(time.RFC3339), s.Tier, s.Seed)
	fmt.Fprintln(w, strings.Repeat("─", 72))

	if len(s.Populations) == 0 {
		fmt.Fprintln(w, "No stars")
		return
	}

	fmt.Fprintf(w, "%-10s %10s %10s %9s %10s %9s %8s\n",
		"Population", "Count", "Drawn", "MeanSize", "MaxRadius", "MeanAbsY", "Flicker")
	fmt.Fprintln(w, strings.Repeat("─", 72))

	for _, p := range s.Populations {
		fmt.Fprintf(w, "%-10s %10d %10d %9.2f %10.1f %9.2f %8.2f\n",
			truncateStr(p.Population, 10),
			p.Count,
			p.Drawn,
			p.MeanSize,
			p.MaxRadius,
			p.MeanHeight,
			p.MeanFlicker,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d stars, %d impostors, generated in %d ms\n", s.Stars, s.Impostors, s.DurationMS)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
