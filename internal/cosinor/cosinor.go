package cosinor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultPeriod is the circadian period in hours.
const DefaultPeriod = 24.0

// numParams is the number of fitted parameters (mesor, amplitude, acrophase).
const numParams = 3

var (
	// ErrTooFewPoints is returned when a series has fewer observations than
	// the zero-amplitude test needs (N-3 residual degrees of freedom).
	ErrTooFewPoints = errors.New("cosinor: at least 4 observations are required")
	// ErrNonFinite is returned when times or values contain NaN or Inf.
	ErrNonFinite = errors.New("cosinor: non-finite input")
)

// Params are the three cosinor model parameters.
type Params struct {
	Mesor     float64
	Amplitude float64
	// Acrophase in radians.
	Acrophase float64
}

// Options controls fitting.
type Options struct {
	// Period of the cosine in the same unit as the time values. 0 means DefaultPeriod.
	Period float64
	// MaxIterations bounds the optimizer's major iterations. 0 uses the gonum default.
	MaxIterations int
}

// DefaultOptions returns the options used by the batch pipeline.
func DefaultOptions() Options {
	return Options{Period: DefaultPeriod, MaxIterations: 1000}
}

// Result holds the fitted parameters and the derived rhythm statistics.
type Result struct {
	Params
	N      int
	Period float64

	MesorSE     float64
	AmplitudeSE float64
	AcrophaseSE float64
	// Covariance is the 3x3 parameter covariance in (mesor, amplitude, acrophase) order.
	Covariance [numParams][numParams]float64

	SSE            float64
	R2             float64
	AcrophaseHours float64

	FStat  float64
	DF1    int
	DF2    int
	PValue float64

	// Method records how the optimum was obtained: "bfgs" or "linear".
	Method string
}

// Rhythmic reports whether the zero-amplitude test rejects at level alpha.
func (r *Result) Rhythmic(alpha float64) bool {
	return !math.IsNaN(r.PValue) && r.PValue < alpha
}

// Predict evaluates mesor + amp*cos(2πt/period - acro).
func Predict(p Params, period, t float64) float64 {
	return p.Mesor + p.Amplitude*math.Cos(2*math.Pi*t/period-p.Acrophase)
}

// Curve samples the fitted model at n evenly spaced points over [from, to].
func Curve(p Params, period, from, to float64, n int) (ts, ys []float64) {
	if n < 2 {
		n = 2
	}
	ts = make([]float64, n)
	ys = make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range ts {
		t := from + float64(i)*step
		if i == n-1 {
			t = to
		}
		ts[i] = t
		ys[i] = Predict(p, period, t)
	}
	return ts, ys
}

// Fit estimates the cosinor parameters for one series by nonlinear least
// squares and derives amplitude SE, R², acrophase in hours and the
// zero-amplitude F test.
func Fit(times, values []float64, opt Options) (*Result, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("cosinor: %d times but %d values", len(times), len(values))
	}
	n := len(values)
	if n <= numParams {
		return nil, fmt.Errorf("%w (got %d)", ErrTooFewPoints, n)
	}
	for i := range values {
		if !isFinite(times[i]) || !isFinite(values[i]) {
			return nil, fmt.Errorf("%w at row %d", ErrNonFinite, i+1)
		}
	}
	period := opt.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	w := 2 * math.Pi / period

	p, method := minimize(times, values, w, opt.MaxIterations)
	p = normalize(p)

	res := &Result{Params: p, N: n, Period: period, Method: method}
	res.SSE = sse(times, values, w, p)
	res.R2 = rSquared(values, res.SSE)
	res.AcrophaseHours = positiveMod(p.Acrophase*period/(2*math.Pi), period)

	res.Covariance = covariance(times, w, p, res.SSE, n)
	res.MesorSE = math.Sqrt(res.Covariance[0][0])
	res.AmplitudeSE = math.Sqrt(res.Covariance[1][1])
	res.AcrophaseSE = math.Sqrt(res.Covariance[2][2])

	res.DF1 = 2
	res.DF2 = n - numParams
	res.FStat, res.PValue = zeroAmplitudeTest(p.Amplitude, res.AmplitudeSE, res.DF1, res.DF2)
	return res, nil
}

// minimize runs BFGS from the customary starting point and falls back to the
// closed-form linear solution when the optimizer fails or stops short of it.
func minimize(times, values []float64, w float64, maxIter int) (Params, string) {
	lin, linOK := linearFit(times, values, w)

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	x0 := []float64{stat.Mean(values, nil), (hi - lo) / 2, 0}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return sse(times, values, w, Params{x[0], x[1], x[2]})
		},
		Grad: func(grad, x []float64) {
			gradSSE(grad, times, values, w, Params{x[0], x[1], x[2]})
		},
	}
	settings := &optimize.Settings{MajorIterations: maxIter}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})

	var fitted Params
	ok := res != nil && len(res.X) == numParams && isFinite(res.F)
	if ok {
		fitted = Params{res.X[0], res.X[1], res.X[2]}
	}
	if !linOK {
		if ok {
			return fitted, "bfgs"
		}
		// Degenerate design with a failed optimizer: report the starting point.
		return Params{x0[0], x0[1], x0[2]}, "bfgs"
	}
	linSSE := sse(times, values, w, lin)
	if !ok || (err != nil && res.F > linSSE) || res.F > linSSE*(1+1e-9)+1e-12 {
		return lin, "linear"
	}
	return fitted, "bfgs"
}

// linearFit solves y = M + β cos ωt + γ sin ωt and converts to (M, A, φ).
func linearFit(times, values []float64, w float64) (Params, bool) {
	n := len(times)
	x := mat.NewDense(n, numParams, nil)
	for i, t := range times {
		x.Set(i, 0, 1)
		x.Set(i, 1, math.Cos(w*t))
		x.Set(i, 2, math.Sin(w*t))
	}
	var coef mat.VecDense
	if err := coef.SolveVec(x, mat.NewVecDense(n, append([]float64(nil), values...))); err != nil {
		return Params{}, false
	}
	beta, gamma := coef.AtVec(1), coef.AtVec(2)
	p := Params{
		Mesor:     coef.AtVec(0),
		Amplitude: math.Hypot(beta, gamma),
		Acrophase: math.Atan2(gamma, beta),
	}
	if !isFinite(p.Mesor) || !isFinite(p.Amplitude) {
		return Params{}, false
	}
	return p, true
}

// normalize reports a non-negative amplitude and an acrophase in [0, 2π).
func normalize(p Params) Params {
	if p.Amplitude < 0 {
		p.Amplitude = -p.Amplitude
		p.Acrophase += math.Pi
	}
	p.Acrophase = positiveMod(p.Acrophase, 2*math.Pi)
	return p
}

func sse(times, values []float64, w float64, p Params) float64 {
	var s float64
	for i, t := range times {
		r := values[i] - (p.Mesor + p.Amplitude*math.Cos(w*t-p.Acrophase))
		s += r * r
	}
	return s
}

func gradSSE(grad, times, values []float64, w float64, p Params) {
	grad[0], grad[1], grad[2] = 0, 0, 0
	for i, t := range times {
		c := math.Cos(w*t - p.Acrophase)
		s := math.Sin(w*t - p.Acrophase)
		r := values[i] - (p.Mesor + p.Amplitude*c)
		grad[0] -= 2 * r
		grad[1] -= 2 * r * c
		grad[2] -= 2 * r * p.Amplitude * s
	}
}

// covariance returns s²(JᵀJ)⁻¹ with s² = SSE/(N-3). A singular Jacobian
// (zero amplitude, too few distinct times) yields +Inf everywhere.
func covariance(times []float64, w float64, p Params, sse float64, n int) [numParams][numParams]float64 {
	var out [numParams][numParams]float64
	j := mat.NewDense(n, numParams, nil)
	for i, t := range times {
		j.Set(i, 0, 1)
		j.Set(i, 1, math.Cos(w*t-p.Acrophase))
		j.Set(i, 2, p.Amplitude*math.Sin(w*t-p.Acrophase))
	}
	var jtj, inv mat.Dense
	jtj.Mul(j.T(), j)
	if err := inv.Inverse(&jtj); err != nil {
		for a := range out {
			for b := range out[a] {
				out[a][b] = math.Inf(1)
			}
		}
		return out
	}
	s2 := sse / float64(n-numParams)
	for a := 0; a < numParams; a++ {
		for b := 0; b < numParams; b++ {
			out[a][b] = inv.At(a, b) * s2
		}
	}
	return out
}

func rSquared(values []float64, sse float64) float64 {
	mean := stat.Mean(values, nil)
	var tot float64
	for _, v := range values {
		d := v - mean
		tot += d * d
	}
	if tot == 0 {
		return math.NaN()
	}
	return 1 - sse/tot
}

// zeroAmplitudeTest computes F = (amp/se)²/2 and its upper-tail probability
// under F(df1, df2).
func zeroAmplitudeTest(amp, se float64, df1, df2 int) (fstat, p float64) {
	switch {
	case math.IsInf(se, 1) || math.IsNaN(se):
		return 0, 1
	case se == 0:
		if amp == 0 {
			return math.NaN(), math.NaN()
		}
		return math.Inf(1), 0
	}
	fstat = (amp / se) * (amp / se) / 2
	dist := distuv.F{D1: float64(df1), D2: float64(df2)}
	p = 1 - dist.CDF(fstat)
	if p < 0 {
		p = 0
	}
	return fstat, p
}

func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	if r >= m {
		r = 0
	}
	return r
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
