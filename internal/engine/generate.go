package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// ErrEmptySpec marks a generation array that cannot produce a value.
// It must propagate as a resolution failure, never as a silent default.
var ErrEmptySpec = errors.New("empty generation spec")

// Generator samples concrete values from generation arrays. The random
// source is injected so tests (and reproducible dev runs) can seed it.
// math/rand sources are not safe for concurrent use, and one Generator
// is shared by every concurrent rendering, so draws are serialized.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd}
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

// FromArray picks one value from a generation array. Classification, in
// priority order:
//
//	[x]            -> the constant x (number or string)
//	[min, max]     -> uniform integer in [ceil(min), floor(max)]
//	[min, max, s]  -> stepped range min, min+s, ... capped at max,
//	                  when s > 0 and max-min > s; rounded to s's
//	                  decimal places
//	anything else  -> uniform pick from the array
func (g *Generator) FromArray(arr []any) (any, error) {
	if len(arr) == 0 {
		return nil, ErrEmptySpec
	}
	if len(arr) == 1 {
		return arr[0], nil
	}

	nums, allNum := toFloats(arr)

	if allNum && len(arr) == 2 && nums[0] < nums[1] {
		low := int(math.Ceil(nums[0]))
		high := int(math.Floor(nums[1]))
		if high < low {
			// degenerate fractional range like [1.2, 1.8]
			return arr[g.intn(len(arr))], nil
		}
		return low + g.intn(high-low+1), nil
	}

	if allNum && len(arr) == 3 && nums[0] < nums[1] && nums[2] > 0 && nums[1]-nums[0] > nums[2] {
		min, max, step := nums[0], nums[1], nums[2]
		count := int(math.Floor((max-min)/step)) + 1
		if count < 1 {
			return arr[g.intn(len(arr))], nil
		}
		val := min + float64(g.intn(count))*step
		// round to the step's own decimal places to avoid float artifacts
		dec := decimalPlaces(step)
		factor := math.Pow(10, float64(dec))
		return math.Round(val*factor) / factor, nil
	}

	return arr[g.intn(len(arr))], nil
}

func toFloats(arr []any) ([]float64, bool) {
	out := make([]float64, len(arr))
	for i, v := range arr {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func decimalPlaces(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// FormatValue renders a resolved scalar the way it should appear in
// question text and in substituted formulas.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
