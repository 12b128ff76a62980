package terrain

import (
	"math/rand/v2"
	"testing"
)

func newTestPerlin(seed uint64) *Perlin {
	return NewPerlin(rand.New(rand.NewPCG(seed, 1)))
}

// TestPerlinDeterministic verifies equal seeds give equal noise
func TestPerlinDeterministic(t *testing.T) {
	a, b := newTestPerlin(7), newTestPerlin(7)
	for i := 0; i < 100; i++ {
		x, z := float64(i)*0.37, float64(i)*-1.13
		if a.Noise2D(x, z) != b.Noise2D(x, z) {
			t.Fatalf("Noise2D differs at %f,%f", x, z)
		}
	}
	c := newTestPerlin(8)
	same := true
	for i := 0; i < 20; i++ {
		if a.Noise2D(float64(i)*0.5, 0.25) != c.Noise2D(float64(i)*0.5, 0.25) {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical noise")
	}
}

// TestPerlinRange verifies raw noise stays within [-1, 1]
func TestPerlinRange(t *testing.T) {
	p := newTestPerlin(3)
	rng := rand.New(rand.NewPCG(12345, 0))
	for i := 0; i < 2000; i++ {
		x := rng.Float64()*400 - 200
		y := rng.Float64()*400 - 200
		z := rng.Float64()*400 - 200
		if v := p.Noise3D(x, y, z); v < -1.0001 || v > 1.0001 {
			t.Errorf("Noise3D(%f,%f,%f) = %f", x, y, z, v)
		}
	}
}

// TestOctavesNormalized verifies octave sums are mapped into [0, 1]
func TestOctavesNormalized(t *testing.T) {
	o := Octaves{Source: newTestPerlin(11), Count: 4, Persistence: 0.5, Lacunarity: 2, Frequency: 0.01}
	lo, hi := 1.0, 0.0
	for x := -500; x < 500; x += 7 {
		for z := -500; z < 500; z += 11 {
			v := o.Sample2D(float64(x), float64(z))
			if v < 0 || v > 1 {
				t.Fatalf("Sample2D(%d,%d) = %f", x, z, v)
			}
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if hi-lo < 0.2 {
		t.Errorf("octave noise is nearly flat: [%f, %f]", lo, hi)
	}
}

func TestNormalizeZeroAmplitude(t *testing.T) {
	if v := (Octaves{Source: newTestPerlin(1)}).Sample2D(3, 4); v != 0.5 {
		t.Errorf("zero-octave sample = %f, want 0.5", v)
	}
}
