package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []*float64
		want []*float64
	}{
		{"empty", nil, []*float64{}},
		{"all absent", []*float64{nil, nil}, []*float64{nil, nil}},
		{"min max", []*float64{ptr(100000), ptr(80000)}, []*float64{ptr(1), ptr(0)}},
		{"midpoint", []*float64{ptr(0), ptr(5), ptr(10)}, []*float64{ptr(0), ptr(0.5), ptr(1)}},
		{"absent preserved", []*float64{ptr(2), nil, ptr(4)}, []*float64{ptr(0), nil, ptr(1)}},
		{"degenerate", []*float64{ptr(7), ptr(7)}, []*float64{ptr(0), ptr(0)}},
		{"single present", []*float64{nil, ptr(42)}, []*float64{nil, ptr(0)}},
		{"negative values", []*float64{ptr(-10), ptr(10)}, []*float64{ptr(0), ptr(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				if tt.want[i] == nil {
					assert.Nil(t, got[i], "index %d", i)
					continue
				}
				require.NotNil(t, got[i], "index %d", i)
				assert.InDelta(t, *tt.want[i], *got[i], 1e-12)
			}
		})
	}
}

func TestNormalize_Range(t *testing.T) {
	t.Parallel()

	in := []*float64{ptr(115286), ptr(74896), ptr(91023), nil, ptr(97382), ptr(72427)}
	for _, v := range Normalize(in) {
		if v == nil {
			continue
		}
		assert.GreaterOrEqual(t, *v, 0.0)
		assert.LessOrEqual(t, *v, 1.0)
	}
}

func TestBell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		v      float64
		target float64
		want   float64
	}{
		{"at target", 0.7, 0.7, 1},
		{"above target", 1.0, 0.7, 0.4},
		{"far below clips", 0.0, 0.7, 0},
		{"midpoint", 0.25, 0.5, 0.5},
		{"outside unit range clips", 2.0, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Bell(tt.v, tt.target), 1e-9)
		})
	}
}

func TestBell_Symmetric(t *testing.T) {
	t.Parallel()

	for _, target := range []float64{0.5, 0.6, 0.7} {
		for d := 0.0; d <= 1.0; d += 0.05 {
			assert.InDelta(t, Bell(target+d, target), Bell(target-d, target), 1e-9,
				"target %v d %v", target, d)
		}
	}
}
