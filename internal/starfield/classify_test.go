package starfield

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		want SpectralClass
	}{
		{"zero is hottest", 0, ClassO},
		{"negative clamps", -0.5, ClassO},
		{"just past O", 0.00001, ClassB},
		{"middle is M", 0.5, ClassM},
		{"one clamps to M", 1, ClassM},
		{"above one clamps", 7, ClassM},
		{"NaN clamps", math.NaN(), ClassO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.u)
			if got.Class != tt.want {
				t.Errorf("Classify(%v).Class = %v, want %v", tt.u, got.Class, tt.want)
			}
		})
	}
}

func TestClassify_AlwaysTableMember(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		c := Classify(rng.Float64())
		found := false
		for _, entry := range classes {
			found = found || entry == c
		}
		if !found {
			t.Fatalf("Classify returned unknown class %v", c.Class)
		}
	}
}

func TestClassify_MAbundance(t *testing.T) {
	const samples = 100000
	rng := rand.New(rand.NewPCG(42, 7))
	m := 0
	for i := 0; i < samples; i++ {
		if Classify(rng.Float64()).Class == ClassM {
			m++
		}
	}
	got := 100 * float64(m) / samples
	if math.Abs(got-76.45) > 1.5 {
		t.Errorf("M-class share = %.2f%%, want 76.45%% ±1.5", got)
	}
}

func TestTemperatureColor_Monotonic(t *testing.T) {
	prev := TemperatureColor(1000)
	for temp := 1000.0; temp <= 60000; temp += 250 {
		c := TemperatureColor(temp)
		if c.R > prev.R+1e-9 {
			t.Fatalf("red increased at %vK: %v -> %v", temp, prev.R, c.R)
		}
		if c.B < prev.B-1e-9 {
			t.Fatalf("blue decreased at %vK: %v -> %v", temp, prev.B, c.B)
		}
		for _, v := range []float64{c.R, c.G, c.B} {
			if v < 0 || v > 1 {
				t.Fatalf("component out of range at %vK: %v", temp, c)
			}
		}
		prev = c
	}
}

func TestTemperatureColor_Clamps(t *testing.T) {
	o, m := classes[0], classes[len(classes)-1]

	if got, want := TemperatureColor(500), TemperatureColor(m.TemperatureK); got != want {
		t.Errorf("TemperatureColor(500) = %v, want M color %v", got, want)
	}
	if got, want := TemperatureColor(1e6), TemperatureColor(o.TemperatureK); got != want {
		t.Errorf("TemperatureColor(1e6) = %v, want O color %v", got, want)
	}
}
