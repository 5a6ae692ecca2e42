package homography

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groundTruth is a mild perspective transform used across tests.
func groundTruth() Homography {
	return FromRows([3][3]float64{
		{1.2, 0.1, 15},
		{-0.05, 0.9, 8},
		{2e-4, -1e-4, 1},
	})
}

func projectAll(t *testing.T, h Homography, src []Point) []Correspondence {
	t.Helper()
	out := make([]Correspondence, len(src))
	for i, p := range src {
		q, ok := h.Project(p)
		require.True(t, ok, "point %v not projectable", p)
		out[i] = Correspondence{A: p, B: q}
	}
	return out
}

func gridPoints(cols, rows int, w, h float64) []Point {
	var pts []Point
	for r := range rows {
		for c := range cols {
			pts = append(pts, Point{
				X: w * float64(c) / float64(cols-1),
				Y: h * float64(r) / float64(rows-1),
			})
		}
	}
	return pts
}

func TestEstimate_ExactRecovery(t *testing.T) {
	src := []Point{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 150}, {X: 0, Y: 150}}
	corrs := projectAll(t, groundTruth(), src)

	res, err := Estimate(corrs)
	require.NoError(t, err)
	assert.Equal(t, MethodExact, res.Method)
	assert.Equal(t, 4, res.Correspondences)
	assert.InDelta(t, 1.0, res.H[8], 0)

	if diff := cmp.Diff(groundTruth(), res.H, cmpopts.EquateApprox(1e-6, 1e-9)); diff != "" {
		t.Errorf("recovered H mismatch (-want +got):\n%s", diff)
	}
	assert.Less(t, res.MaxError, 1e-6)
	require.Len(t, res.Residuals, 4)
	for _, r := range res.Residuals {
		for _, v := range r.Cross {
			assert.InDelta(t, 0, v, 1e-6)
		}
	}
}

func TestEstimate_IdentityCorrespondences(t *testing.T) {
	src := []Point{{X: 5, Y: 5}, {X: 95, Y: 7}, {X: 90, Y: 80}, {X: 3, Y: 70}, {X: 50, Y: 40}}
	corrs := make([]Correspondence, len(src))
	for i, p := range src {
		corrs[i] = Correspondence{A: p, B: p}
	}

	res, err := Estimate(corrs)
	require.NoError(t, err)
	assert.Equal(t, MethodLeastSquares, res.Method)
	if diff := cmp.Diff(Identity(), res.H, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimate_ScaleAndTranslate(t *testing.T) {
	// Corners of a 100x100 image mapped onto a 100x80 region offset by (10, 10).
	corrs := Pair(
		[]Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
		[]Point{{X: 10, Y: 10}, {X: 110, Y: 10}, {X: 110, Y: 90}, {X: 10, Y: 90}},
	)
	res, err := Estimate(corrs)
	require.NoError(t, err)

	want := FromRows([3][3]float64{{1, 0, 10}, {0, 0.8, 10}, {0, 0, 1}})
	if diff := cmp.Diff(want, res.H, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("H mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimate_LeastSquaresNoiseless(t *testing.T) {
	corrs := projectAll(t, groundTruth(), gridPoints(3, 3, 400, 300))

	res, err := Estimate(corrs)
	require.NoError(t, err)
	assert.Equal(t, MethodLeastSquares, res.Method)
	if diff := cmp.Diff(groundTruth(), res.H, cmpopts.EquateApprox(1e-6, 1e-9)); diff != "" {
		t.Errorf("recovered H mismatch (-want +got):\n%s", diff)
	}
	assert.Less(t, res.RMSE, 1e-6)
}

func TestEstimate_Errors(t *testing.T) {
	tests := []struct {
		name         string
		corrs        []Correspondence
		insufficient bool
	}{
		{
			name:         "empty",
			corrs:        nil,
			insufficient: true,
		},
		{
			name: "three pairs",
			corrs: Pair(
				[]Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
				[]Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
			),
			insufficient: true,
		},
		{
			name: "collinear sources",
			corrs: Pair(
				[]Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}},
				[]Point{{X: 5, Y: 5}, {X: 15, Y: 16}, {X: 25, Y: 24}, {X: 40, Y: 41}},
			),
		},
		{
			name: "collinear targets",
			corrs: Pair(
				[]Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
				[]Point{{X: 0, Y: 50}, {X: 10, Y: 50}, {X: 20, Y: 50}, {X: 30, Y: 50}},
			),
		},
		{
			name: "repeated point",
			corrs: Pair(
				[]Point{{X: 7, Y: 3}, {X: 7, Y: 3}, {X: 7, Y: 3}, {X: 7, Y: 3}, {X: 7, Y: 3}},
				[]Point{{X: 1, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 2}},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Estimate(tt.corrs)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrDegenerateInput)

			var insufficient *InsufficientCorrespondencesError
			var degenerate *DegenerateInputError
			if tt.insufficient {
				require.ErrorAs(t, err, &insufficient)
				assert.Equal(t, len(tt.corrs), insufficient.Got)
				assert.Equal(t, MinCorrespondences, insufficient.Need)
			} else {
				require.ErrorAs(t, err, &degenerate)
				assert.False(t, errors.As(err, &insufficient))
			}
		})
	}
}

func TestEstimate_NonFiniteCoordinates(t *testing.T) {
	base := func() []Correspondence {
		return projectAll(t, groundTruth(), gridPoints(3, 2, 300, 200))
	}

	tests := []struct {
		name   string
		mutate func(c []Correspondence)
	}{
		{"NaN source", func(c []Correspondence) { c[1].A.Y = math.NaN() }},
		{"NaN target", func(c []Correspondence) { c[0].B.X = math.NaN() }},
		{"positive Inf", func(c []Correspondence) { c[2].A.X = math.Inf(1) }},
		{"negative Inf", func(c []Correspondence) { c[3].B.Y = math.Inf(-1) }},
		{"overflowing products", func(c []Correspondence) { c[4].A.X, c[4].B.X = 1e200, 1e200 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrs := base()
			tt.mutate(corrs)

			var res *Result
			var err error
			require.NotPanics(t, func() { res, err = Estimate(corrs) })
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrDegenerateInput)
			var degErr *DegenerateInputError
			require.ErrorAs(t, err, &degErr)
			assert.Equal(t, "non-finite coordinates", degErr.Reason)
		})
	}
}

func TestEstimate_CollinearReportsRank(t *testing.T) {
	corrs := Pair(
		[]Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}},
		[]Point{{X: 5, Y: 5}, {X: 15, Y: 16}, {X: 25, Y: 24}, {X: 40, Y: 41}},
	)
	_, err := Estimate(corrs)
	var degenerate *DegenerateInputError
	require.ErrorAs(t, err, &degenerate)
	assert.Positive(t, degenerate.Rank)
	assert.Less(t, degenerate.Rank, unknowns)
	assert.Contains(t, err.Error(), "rank deficient")
}

func TestEstimate_LeastSquaresBeatsExactSubsets(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	truth := groundTruth()
	src := gridPoints(5, 4, 400, 300)

	var lsTotal, subsetTotal float64
	for range 10 {
		corrs := projectAll(t, truth, src)
		for i := range corrs {
			corrs[i].B.X += rng.NormFloat64() * 0.5
			corrs[i].B.Y += rng.NormFloat64() * 0.5
		}

		ls, err := Estimate(corrs)
		require.NoError(t, err)
		lsTotal += ls.MeanSquaredError

		var sum float64
		var n int
		for range 30 {
			idx := rng.Perm(len(corrs))[:4]
			subset := make([]Correspondence, 4)
			for k, j := range idx {
				subset[k] = corrs[j]
			}
			exact, err := Estimate(subset)
			if err != nil {
				continue
			}
			mse := ReprojectionError(exact.H, corrs)
			if math.IsInf(mse, 0) || math.IsNaN(mse) {
				continue
			}
			sum += mse
			n++
		}
		require.Positive(t, n)
		subsetTotal += sum / float64(n)
	}

	assert.Less(t, lsTotal, subsetTotal)
}

func TestEstimator_ZeroConfigUsesDefaults(t *testing.T) {
	e := NewEstimator(Config{}, nil)
	assert.Equal(t, DefaultConfig(), e.cfg)
}

func TestEstimator_Observer(t *testing.T) {
	var got *Result
	e := NewEstimator(DefaultConfig(), ObserverFunc(func(res *Result) { got = res }))

	corrs := projectAll(t, groundTruth(), gridPoints(2, 2, 100, 100))
	res, err := e.Estimate(corrs)
	require.NoError(t, err)
	assert.Same(t, res, got)

	got = nil
	_, err = e.Estimate(corrs[:3])
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := NewEstimator(DefaultConfig(), LogObserver{Logger: logger})

	_, err := e.Estimate(projectAll(t, groundTruth(), gridPoints(2, 2, 100, 100)))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Estimated homography")
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestEstimate_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(1234)

	properties := gopter.NewProperties(parameters)

	// Random near-identity transforms keep w positive over the sample area.
	homographyGen := gopter.CombineGens(
		gen.Float64Range(0.8, 1.2),
		gen.Float64Range(-0.2, 0.2),
		gen.Float64Range(-50, 50),
		gen.Float64Range(-0.2, 0.2),
		gen.Float64Range(0.8, 1.2),
		gen.Float64Range(-50, 50),
		gen.Float64Range(-5e-4, 5e-4),
		gen.Float64Range(-5e-4, 5e-4),
	).Map(func(v []interface{}) Homography {
		var h Homography
		for i := range 8 {
			h[i] = v[i].(float64)
		}
		h[8] = 1
		return h
	})

	// Jittered square corners never become collinear.
	quadGen := gopter.CombineGens(
		gen.Float64Range(-20, 20), gen.Float64Range(-20, 20),
		gen.Float64Range(-20, 20), gen.Float64Range(-20, 20),
		gen.Float64Range(-20, 20), gen.Float64Range(-20, 20),
		gen.Float64Range(-20, 20), gen.Float64Range(-20, 20),
	).Map(func(v []interface{}) []Point {
		base := []Point{{X: 20, Y: 20}, {X: 220, Y: 20}, {X: 220, Y: 220}, {X: 20, Y: 220}}
		for i := range base {
			base[i].X += v[2*i].(float64)
			base[i].Y += v[2*i+1].(float64)
		}
		return base
	})

	properties.Property("exact estimate reproduces its correspondences", prop.ForAll(
		func(h Homography, src []Point) bool {
			corrs := make([]Correspondence, len(src))
			for i, p := range src {
				q, ok := h.Project(p)
				if !ok {
					return false
				}
				corrs[i] = Correspondence{A: p, B: q}
			}
			res, err := Estimate(corrs)
			if err != nil {
				return false
			}
			for _, c := range corrs {
				q, ok := res.H.Project(c.A)
				if !ok || math.Hypot(q.X-c.B.X, q.Y-c.B.Y) > 1e-6 {
					return false
				}
			}
			return true
		},
		homographyGen,
		quadGen,
	))

	properties.Property("least squares on a noiseless grid recovers H", prop.ForAll(
		func(h Homography) bool {
			src := gridPoints(4, 3, 240, 240)
			corrs := make([]Correspondence, len(src))
			for i, p := range src {
				q, ok := h.Project(p)
				if !ok {
					return false
				}
				corrs[i] = Correspondence{A: p, B: q}
			}
			res, err := Estimate(corrs)
			if err != nil {
				return false
			}
			return cmp.Equal(h, res.H, cmpopts.EquateApprox(1e-6, 1e-8))
		},
		homographyGen,
	))

	properties.TestingRun(t)
}
