package engine

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestGenerator(seed int64) *Generator {
	return NewGenerator(rand.New(rand.NewSource(seed)))
}

func TestFromArrayConstant(t *testing.T) {
	g := newTestGenerator(1)
	for _, spec := range [][]any{{42.0}, {"mg/ml"}} {
		v, err := g.FromArray(spec)
		if err != nil {
			t.Fatalf("FromArray(%v): %v", spec, err)
		}
		if v != spec[0] {
			t.Errorf("FromArray(%v) = %v, want %v", spec, v, spec[0])
		}
	}
}

func TestFromArrayIntegerRange(t *testing.T) {
	g := newTestGenerator(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v, err := g.FromArray([]any{2.3, 6.9})
		if err != nil {
			t.Fatal(err)
		}
		n, ok := v.(int)
		if !ok {
			t.Fatalf("range value %v (%T) is not an integer", v, v)
		}
		if n < 3 || n > 6 {
			t.Fatalf("range value %d outside [3,6]", n)
		}
		seen[n] = true
	}
	for n := 3; n <= 6; n++ {
		if !seen[n] {
			t.Errorf("value %d never generated", n)
		}
	}
}

func TestFromArraySteppedRange(t *testing.T) {
	g := newTestGenerator(11)
	want := map[float64]bool{0.5: false, 0.75: false, 1.0: false, 1.25: false, 1.5: false}
	for i := 0; i < 2000; i++ {
		v, err := g.FromArray([]any{0.5, 1.5, 0.25})
		if err != nil {
			t.Fatal(err)
		}
		f, ok := v.(float64)
		if !ok {
			t.Fatalf("stepped value %v (%T) is not a float", v, v)
		}
		if _, member := want[f]; !member {
			t.Fatalf("stepped value %v not in min..max by step", f)
		}
		want[f] = true
	}
	for f, hit := range want {
		if !hit {
			t.Errorf("value %v never generated", f)
		}
	}
}

func TestFromArrayDiscretePick(t *testing.T) {
	g := newTestGenerator(3)
	spec := []any{"a", 1.0, "c", "d"}
	for i := 0; i < 200; i++ {
		v, err := g.FromArray(spec)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, e := range spec {
			if v == e {
				found = true
			}
		}
		if !found {
			t.Fatalf("picked %v not in %v", v, spec)
		}
	}

	// descending pair is not a range
	v, err := g.FromArray([]any{9.0, 3.0})
	if err != nil {
		t.Fatal(err)
	}
	if v != 9.0 && v != 3.0 {
		t.Errorf("descending pair should pick an element, got %v", v)
	}

	// triple whose span does not exceed the step is not a stepped range
	v, err = g.FromArray([]any{1.0, 2.0, 5.0})
	if err != nil {
		t.Fatal(err)
	}
	if v != 1.0 && v != 2.0 && v != 5.0 {
		t.Errorf("non-stepped triple should pick an element, got %v", v)
	}
}

func TestFromArrayNonPositiveStep(t *testing.T) {
	g := newTestGenerator(5)
	// zero and negative steps are not stepped ranges; both must fall
	// through to a discrete pick instead of blowing up
	for _, spec := range [][]any{{1.0, 10.0, -2.0}, {1.0, 10.0, 0.0}} {
		for i := 0; i < 100; i++ {
			v, err := g.FromArray(spec)
			if err != nil {
				t.Fatalf("FromArray(%v): %v", spec, err)
			}
			if v != spec[0] && v != spec[1] && v != spec[2] {
				t.Fatalf("FromArray(%v) = %v, want an element", spec, v)
			}
		}
	}
}

func TestFromArrayEmpty(t *testing.T) {
	g := newTestGenerator(1)
	if _, err := g.FromArray(nil); !errors.Is(err, ErrEmptySpec) {
		t.Errorf("nil spec: err = %v, want ErrEmptySpec", err)
	}
	if _, err := g.FromArray([]any{}); !errors.Is(err, ErrEmptySpec) {
		t.Errorf("empty spec: err = %v, want ErrEmptySpec", err)
	}
}

func TestFromArrayDeterministicWithSeed(t *testing.T) {
	a := newTestGenerator(99)
	b := newTestGenerator(99)
	for i := 0; i < 50; i++ {
		va, _ := a.FromArray([]any{1.0, 100.0})
		vb, _ := b.FromArray([]any{1.0, 100.0})
		if va != vb {
			t.Fatalf("same seed diverged at draw %d: %v vs %v", i, va, vb)
		}
	}
}

func TestDecimalPlaces(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{{0.25, 2}, {0.5, 1}, {2, 0}, {0.125, 3}}
	for _, c := range cases {
		if got := decimalPlaces(c.in); got != c.want {
			t.Errorf("decimalPlaces(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{750.0, "750"},
		{0.5, "0.5"},
		{12, "12"},
		{int64(-3), "-3"},
		{"kg", "kg"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := FormatValue(c.in); got != c.want {
			t.Errorf("FormatValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := FormatValue(math.Pi); got != "3.141592653589793" {
		t.Errorf("FormatValue(pi) = %q", got)
	}
}
