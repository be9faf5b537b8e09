package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/litescript/ls-galaxy/internal/astro"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

// twoPopulations builds a small dataset: two white bulge stars at the
// origin and three arm stars on the +X axis.
func twoPopulations() *starfield.Dataset {
	d := &starfield.Dataset{
		Positions: []float32{0, 0, 0, 0, 0, 0, 10, 0, 0, 20, 1, 0, 30, -1, 0},
		Colors:    []float32{1, 1, 1, 1, 1, 1, 0.5, 0.6, 1, 0.5, 0.6, 1, 0.5, 0.6, 1},
		Sizes:     []float32{2, 2, 1, 1, 1},
		Flickers:  []float32{1, 1, 0.5, 1.5, 2.5},
		Tier:      starfield.TierLow,
		Segments: []starfield.Segment{
			{Population: starfield.PopulationBulge, Offset: 0, Count: 2},
			{Population: starfield.PopulationArms, Offset: 2, Count: 3},
		},
	}
	return d
}

func frontCamera() astro.Camera {
	return astro.Camera{Distance: 100, ElevationDeg: 30, FOVDeg: 60}
}

func brightness(img *image.RGBA, x, y int) int {
	c := img.RGBAAt(x, y)
	return int(c.R) + int(c.G) + int(c.B)
}

func TestRender_CentreStar(t *testing.T) {
	opts := Options{Width: 64, Height: 48, Scale: 2, Camera: frontCamera()}
	img, err := Render(twoPopulations(), []starfield.Range{{Start: 0, Count: 2}}, opts)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := img.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Fatalf("bounds = %v, want 64x48", got)
	}
	if brightness(img, 32, 24) == 0 {
		t.Error("centre pixel is black, want the bulge star")
	}
	if brightness(img, 0, 0) != 0 {
		t.Error("corner pixel is lit")
	}
	if a := img.RGBAAt(0, 0).A; a != 0xff {
		t.Errorf("alpha = %d, want opaque", a)
	}
}

func TestRender_RangesLimitStars(t *testing.T) {
	opts := Options{Width: 32, Height: 32, Scale: 1, Camera: frontCamera()}
	img, err := Render(twoPopulations(), []starfield.Range{{Start: 2, Count: 0}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 || img.Pix[i+2] != 0 {
			t.Fatal("empty range produced lit pixels")
		}
	}
}

func TestRender_Invalid(t *testing.T) {
	if _, err := Render(twoPopulations(), nil, Options{Width: 0, Height: 10}); !errors.Is(err, ErrSize) {
		t.Errorf("Render(0x10) error = %v, want ErrSize", err)
	}

	bad := twoPopulations()
	bad.Flickers = bad.Flickers[:4]
	opts := Options{Width: 8, Height: 8, Camera: frontCamera()}
	if _, err := Render(bad, nil, opts); !errors.Is(err, starfield.ErrShape) {
		t.Errorf("Render(bad shape) error = %v, want ErrShape", err)
	}
}

func TestRender_Rotation(t *testing.T) {
	cam := astro.Camera{Target: r3.Vec{}, Distance: 100, ElevationDeg: 89, FOVDeg: 60}
	opts := Options{Width: 40, Height: 40, Scale: 1, Camera: cam}
	arms := []starfield.Range{{Start: 4, Count: 1}}

	still, err := Render(twoPopulations(), arms, opts)
	if err != nil {
		t.Fatal(err)
	}
	opts.Angle = 3.14159
	turned, err := Render(twoPopulations(), arms, opts)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(still.Pix, turned.Pix) {
		t.Error("rotation did not move the star")
	}
}

func TestEncode_WebP(t *testing.T) {
	img, err := Render(twoPopulations(), nil, Options{Width: 16, Height: 16, Camera: frontCamera()})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b := buf.Bytes()
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		t.Errorf("output does not start with a WebP header: % x", b[:min(12, len(b))])
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "galaxy.webp")
	err := WriteFile(path, twoPopulations(), nil, Options{Width: 16, Height: 9, Scale: 2, Camera: frontCamera()})
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("snapshot file is empty")
	}
}

func TestExportStats(t *testing.T) {
	d := twoPopulations()
	s := ExportStats(d, nil, 7, 1500*time.Millisecond)

	if s.Tier != "low" || s.Stars != 5 || s.Impostors != 0 || s.Seed != 7 || s.DurationMS != 1500 {
		t.Errorf("header = %+v", s)
	}
	if len(s.Populations) != 2 {
		t.Fatalf("len(Populations) = %d, want 2", len(s.Populations))
	}
	arms := s.Populations[1]
	if arms.Count != 3 || arms.Drawn != 3 {
		t.Errorf("arms count/drawn = %d/%d, want 3/3", arms.Count, arms.Drawn)
	}
	if arms.MaxRadius != 30 {
		t.Errorf("arms MaxRadius = %v, want 30", arms.MaxRadius)
	}
	if arms.MeanFlicker != 1.5 {
		t.Errorf("arms MeanFlicker = %v, want 1.5", arms.MeanFlicker)
	}
}

func TestStats_WriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportStats(twoPopulations(), nil, 1, 0).WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"tier", "stars", "populations", "duration_ms"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
}

func TestStats_WriteSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	ExportStats(twoPopulations(), nil, 1, 0).WriteSummaryTable(&buf)
	out := buf.String()
	for _, want := range []string{"tier=low", "bulge", "arms", "Total: 5 stars"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	ExportStats(nil, nil, 1, 0).WriteSummaryTable(&buf)
	if !strings.Contains(buf.String(), "No stars") {
		t.Errorf("empty summary = %q", buf.String())
	}
}

func TestTruncateStr(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"arms", 10, "arms"},
		{"clusters", 6, "clus.."},
		{"clusters", 3, "clu"},
	}
	for _, tt := range tests {
		if got := truncateStr(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateStr(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
