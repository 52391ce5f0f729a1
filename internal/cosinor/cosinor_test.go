package cosinor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampleDesign returns ZT0..ZT20 every 4h with the given number of replicates.
func sampleDesign(reps int) []float64 {
	var ts []float64
	for zt := 0.0; zt < 24; zt += 4 {
		for r := 0; r < reps; r++ {
			ts = append(ts, zt)
		}
	}
	return ts
}

func synth(ts []float64, p Params, noise []float64) []float64 {
	ys := make([]float64, len(ts))
	for i, t := range ts {
		ys[i] = Predict(p, DefaultPeriod, t)
		if len(noise) > 0 {
			ys[i] += noise[i%len(noise)]
		}
	}
	return ys
}

func TestFitRecoversExactCosine(t *testing.T) {
	ts := sampleDesign(3)
	want := Params{Mesor: 5, Amplitude: 2, Acrophase: 1}
	ys := synth(ts, want, nil)

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, want.Mesor, res.Mesor, 1e-6)
	assert.InDelta(t, want.Amplitude, res.Amplitude, 1e-6)
	assert.InDelta(t, want.Acrophase, res.Acrophase, 1e-6)
	assert.InDelta(t, 1.0, res.R2, 1e-9)
	assert.InDelta(t, 1*24/(2*math.Pi), res.AcrophaseHours, 1e-5)
	assert.Equal(t, 18, res.N)
	assert.Equal(t, 2, res.DF1)
	assert.Equal(t, 15, res.DF2)
	assert.Less(t, res.PValue, 1e-6)
}

func TestFitNormalizesNegativeAmplitude(t *testing.T) {
	ts := sampleDesign(2)
	ys := synth(ts, Params{Mesor: 3, Amplitude: 1.5, Acrophase: 4.0}, []float64{0.05, -0.04, 0.02, -0.01})

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Amplitude, 0.0)
	assert.GreaterOrEqual(t, res.Acrophase, 0.0)
	assert.Less(t, res.Acrophase, 2*math.Pi)
	assert.InDelta(t, 4.0, res.Acrophase, 0.05)
	assert.InDelta(t, 4.0*24/(2*math.Pi), res.AcrophaseHours, 0.2)
}

func TestFitMatchesClosedFormOptimum(t *testing.T) {
	ts := sampleDesign(3)
	noise := []float64{0.31, -0.22, 0.05, -0.4, 0.18, 0.27, -0.09, 0.12, -0.33, 0.02, 0.25, -0.15, 0.08}
	ys := synth(ts, Params{Mesor: 1.2, Amplitude: 0.6, Acrophase: 2.2}, noise)

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)

	lin, ok := linearFit(ts, ys, 2*math.Pi/DefaultPeriod)
	require.True(t, ok)
	lin = normalize(lin)

	assert.InDelta(t, lin.Mesor, res.Mesor, 1e-5)
	assert.InDelta(t, lin.Amplitude, res.Amplitude, 1e-5)
	assert.InDelta(t, lin.Acrophase, res.Acrophase, 1e-4)

	// Derived statistics are consistent with each other.
	wantF := math.Pow(res.Amplitude/res.AmplitudeSE, 2) / 2
	assert.InDelta(t, wantF, res.FStat, 1e-9)
	wantP := 1 - distuv.F{D1: 2, D2: float64(len(ts) - 3)}.CDF(wantF)
	assert.InDelta(t, wantP, res.PValue, 1e-12)
	assert.Greater(t, res.PValue, 0.0)
	assert.Less(t, res.PValue, 1.0)
	assert.Greater(t, res.R2, 0.0)
	assert.Less(t, res.R2, 1.0)
	assert.True(t, res.Rhythmic(0.05))
}

func TestFitFlatSeriesIsNotRhythmic(t *testing.T) {
	ts := sampleDesign(2)
	noise := []float64{0.1, -0.1, 0.1, -0.1, -0.1, 0.1, -0.1, 0.1, 0.1, -0.1, -0.1, 0.1}
	ys := synth(ts, Params{Mesor: 2}, noise)

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Mesor, 0.05)
	assert.False(t, res.Rhythmic(0.05))
}

func TestFitConstantSeries(t *testing.T) {
	ts := sampleDesign(2)
	ys := make([]float64, len(ts))
	for i := range ys {
		ys[i] = 3.5
	}

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 3.5, res.Mesor, 1e-9)
	assert.True(t, math.IsNaN(res.R2), "R2 = %v", res.R2)
	assert.True(t, math.IsInf(res.AmplitudeSE, 1), "amplitude SE = %v", res.AmplitudeSE)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, res.Rhythmic(0.05))
}

func TestFitTwoTimePointsIsSingular(t *testing.T) {
	ts := []float64{0, 0, 0, 12, 12, 12}
	ys := []float64{2.1, 1.9, 2.0, 1.0, 1.2, 0.8}

	res, err := Fit(ts, ys, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.AmplitudeSE, 1), "amplitude SE = %v", res.AmplitudeSE)
	assert.True(t, math.IsInf(res.AcrophaseSE, 1), "acrophase SE = %v", res.AcrophaseSE)
	assert.Equal(t, 0.0, res.FStat)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, math.IsNaN(res.R2))
}

func TestFitErrors(t *testing.T) {
	_, err := Fit([]float64{0, 4, 8}, []float64{1, 2, 3}, DefaultOptions())
	require.True(t, errors.Is(err, ErrTooFewPoints))

	_, err = Fit([]float64{0, 4, 8, 12}, []float64{1, math.NaN(), 3, 4}, DefaultOptions())
	require.True(t, errors.Is(err, ErrNonFinite))

	_, err = Fit([]float64{0, 4}, []float64{1}, DefaultOptions())
	require.Error(t, err)
}

func TestZeroAmplitudeTestEdges(t *testing.T) {
	f, p := zeroAmplitudeTest(1, math.Inf(1), 2, 5)
	assert.Equal(t, 0.0, f)
	assert.Equal(t, 1.0, p)

	f, p = zeroAmplitudeTest(1, 0, 2, 5)
	assert.True(t, math.IsInf(f, 1))
	assert.Equal(t, 0.0, p)
}

func TestCurve(t *testing.T) {
	p := Params{Mesor: 1, Amplitude: 1}
	ts, ys := Curve(p, DefaultPeriod, 0, 24, 500)
	require.Len(t, ts, 500)
	require.Len(t, ys, 500)
	assert.Equal(t, 0.0, ts[0])
	assert.Equal(t, 24.0, ts[499])
	assert.InDelta(t, 2.0, ys[0], 1e-12)
	assert.InDelta(t, 2.0, ys[499], 1e-12)
}

func TestPositiveMod(t *testing.T) {
	assert.InDelta(t, 22.0, positiveMod(-2, 24), 1e-12)
	assert.InDelta(t, 1.0, positiveMod(25, 24), 1e-12)
	assert.Equal(t, 0.0, positiveMod(24, 24))
}
