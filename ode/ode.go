// Package ode 求解一阶常微分方程组的初值问题。
//
// 非刚性段使用自适应 Dormand-Prince 5(4) 格式，检测到刚性后切换为
// 线性隐式 Rosenbrock 2(3) 格式 (Shampine & Reichelt)，刚性消失后再切换回来。
// 两次切换之间至少间隔 holdSteps 个成功步。
// 输出时刻与断点 (Critical) 都不会被跨越。
package ode

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrMaxSteps      = errors.New("ode: maximum number of steps reached")
	ErrStepTooSmall  = errors.New("ode: step size became too small")
	ErrNonIncreasing = errors.New("ode: output times must be non-decreasing")
	ErrNotFinite     = errors.New("ode: solution is not finite")
	ErrDimension     = errors.New("ode: empty initial state")
)

// Error 记录求解失败时的位置
type Error struct {
	T    float64
	Step int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (t=%g, step=%d)", e.Err, e.T, e.Step)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Func 计算 dydt = f(t, y)，dydt 由调用方分配
type Func func(t float64, y, dydt []float64)

type Method int

const (
	Auto Method = iota
	NonStiff
	Stiff
)

type Options struct {
	RelTol      float64
	AbsTol      float64
	InitialStep float64
	MaxStep     float64
	MaxSteps    int
	// 右端函数不连续的时刻
	Critical []float64
	Method   Method
}

type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	StiffSteps  int
	Switches    int
}

type Solution struct {
	T     []float64
	Y     [][]float64
	Stats Stats
}

const (
	defaultTol      = 1.49012e-8
	defaultMaxSteps = 100000

	stiffLimit  = 3.25
	switchAfter = 15
	resetAfter  = 6
	holdSteps   = 2 * switchAfter

	safety = 0.9
)

var sqrtEps = math.Sqrt(2.220446049250313e-16)

func (o Options) withDefaults() Options {
	if o.RelTol <= 0 {
		o.RelTol = defaultTol
	}
	if o.AbsTol <= 0 {
		o.AbsTol = defaultTol
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = defaultMaxSteps
	}
	if o.MaxStep <= 0 {
		o.MaxStep = math.Inf(1)
	}
	return o
}

// Solve 从 (ts[0], y0) 出发积分，返回每个 ts 时刻的解
func Solve(f Func, y0, ts []float64, opts *Options) (*Solution, error) {
	if len(y0) == 0 {
		return nil, ErrDimension
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()

	sol := &Solution{T: append([]float64(nil), ts...), Y: make([][]float64, len(ts))}
	if len(ts) == 0 {
		return sol, nil
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			return nil, ErrNonIncreasing
		}
	}

	s := newSolver(f, y0, ts[0], o)
	s.h = s.initialStep(ts[len(ts)-1])
	sol.Y[0] = append([]float64(nil), y0...)
	for i := 1; i < len(ts); i++ {
		if err := s.advance(ts[i]); err != nil {
			return nil, err
		}
		sol.Y[i] = append([]float64(nil), s.y...)
	}
	sol.Stats = s.stats
	return sol, nil
}

type solver struct {
	f Func
	o Options
	n int

	t float64
	y []float64
	h float64
	// 断点左极限，阶段求值不超过该时刻
	tCap float64

	stiff         bool
	stiffCount    int
	nonStiffCount int
	// 上次切换后的成功步数
	sinceSwitch int

	// k[0] 中保存 f(t, y)
	fsal bool
	k    [7][]float64

	ytmp, ynew, yerr, ystage []float64
	crit                     []float64

	jac    *mat.Dense
	w      *mat.Dense
	lu     mat.LU
	f0, f1, f2 []float64
	fy, ft     []float64
	k1, k2, k3 *mat.VecDense
	rhs        *mat.VecDense

	stats Stats
}

func newSolver(f Func, y0 []float64, t0 float64, o Options) *solver {
	n := len(y0)
	s := &solver{
		f:      f,
		o:      o,
		n:      n,
		t:      t0,
		tCap:   math.Inf(1),
		y:      append([]float64(nil), y0...),
		ytmp:   make([]float64, n),
		ynew:   make([]float64, n),
		yerr:   make([]float64, n),
		ystage: make([]float64, n),
		f0:     make([]float64, n),
		f1:     make([]float64, n),
		f2:     make([]float64, n),
		fy:     make([]float64, n),
		ft:     make([]float64, n),
		jac:    mat.NewDense(n, n, nil),
		w:      mat.NewDense(n, n, nil),
		k1:     mat.NewVecDense(n, nil),
		k2:     mat.NewVecDense(n, nil),
		k3:     mat.NewVecDense(n, nil),
		rhs:    mat.NewVecDense(n, nil),
		stiff:  o.Method == Stiff,
	}
	// 第一次切换不受间隔限制
	s.sinceSwitch = holdSteps
	for i := range s.k {
		s.k[i] = make([]float64, n)
	}
	for _, c := range o.Critical {
		if c > t0 {
			s.crit = append(s.crit, c)
		}
	}
	sort.Float64s(s.crit)
	return s
}

func (s *solver) eval(t float64, y, dydt []float64) {
	s.f(t, y, dydt)
	s.stats.Evaluations++
}

func (s *solver) scale(a, b float64) float64 {
	return s.o.AbsTol + s.o.RelTol*math.Max(math.Abs(a), math.Abs(b))
}

// 初始步长估计 (Hairer, Nørsett & Wanner)
func (s *solver) initialStep(tEnd float64) float64 {
	span := math.Abs(tEnd - s.t)
	if s.o.InitialStep > 0 {
		return s.o.InitialStep
	}
	if span == 0 {
		return 1
	}
	s.eval(s.t, s.y, s.k[0])
	s.fsal = true

	var d0, d1 float64
	for i := 0; i < s.n; i++ {
		sc := s.scale(s.y[i], 0)
		d0 += (s.y[i] / sc) * (s.y[i] / sc)
		d1 += (s.k[0][i] / sc) * (s.k[0][i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(s.n))
	d1 = math.Sqrt(d1 / float64(s.n))

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	for i := 0; i < s.n; i++ {
		s.ytmp[i] = s.y[i] + h0*s.k[0][i]
	}
	s.eval(s.t+h0, s.ytmp, s.fy)
	var d2 float64
	for i := 0; i < s.n; i++ {
		sc := s.scale(s.y[i], 0)
		d := (s.fy[i] - s.k[0][i]) / sc
		d2 += d * d
	}
	d2 = math.Sqrt(d2/float64(s.n)) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 1.0/5)
	}
	return math.Min(math.Min(100*h0, h1), math.Min(span, s.o.MaxStep))
}

func (s *solver) advance(tout float64) error {
	for s.t < tout {
		if s.stats.Steps >= s.o.MaxSteps {
			return &Error{T: s.t, Step: s.stats.Steps, Err: ErrMaxSteps}
		}

		target := tout
		atCritical := false
		if len(s.crit) > 0 && s.crit[0] <= target {
			target = s.crit[0]
			atCritical = true
		}

		s.tCap = math.Inf(1)
		if atCritical {
			s.tCap = math.Nextafter(target, math.Inf(-1))
		}

		if target-s.t <= 16*eps(s.t) {
			s.t = target
			if atCritical {
				s.passCritical()
			}
			continue
		}

		hOld := math.Min(s.h, s.o.MaxStep)
		h := hOld
		clipped := false
		if target-(s.t+h) <= 0.01*h {
			h = target - s.t
			clipped = true
		}
		if h <= 16*eps(s.t) {
			return &Error{T: s.t, Step: s.stats.Steps, Err: ErrStepTooSmall}
		}

		var accepted bool
		var hNext float64
		var err error
		if s.stiff {
			accepted, hNext, err = s.rosenbrockStep(h)
		} else {
			accepted, hNext = s.dopriStep(h)
		}
		if err != nil {
			return &Error{T: s.t, Step: s.stats.Steps, Err: err}
		}
		if !accepted {
			s.stats.Rejected++
			s.h = hNext
			continue
		}

		s.stats.Steps++
		s.sinceSwitch++
		if clipped {
			s.t = target
			s.h = math.Max(hOld, hNext)
			if atCritical {
				s.passCritical()
			}
		} else {
			s.h = hNext
		}

		for _, v := range s.y {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &Error{T: s.t, Step: s.stats.Steps, Err: ErrNotFinite}
			}
		}
	}
	return nil
}

// 越过断点后右端函数需重新计算
func (s *solver) passCritical() {
	s.crit = s.crit[1:]
	s.fsal = false
}

func eps(t float64) float64 {
	return 2.220446049250313e-16 * math.Max(math.Abs(t), 1)
}

func (s *solver) errNorm(y, ynew, yerr []float64) float64 {
	var sum float64
	for i := 0; i < s.n; i++ {
		e := yerr[i] / s.scale(y[i], ynew[i])
		sum += e * e
	}
	return math.Sqrt(sum / float64(s.n))
}

func (s *solver) setStiff(stiff bool) {
	if s.o.Method != Auto || s.stiff == stiff {
		return
	}
	s.stiff = stiff
	s.stiffCount = 0
	s.nonStiffCount = 0
	s.sinceSwitch = 0
	s.fsal = false
	s.stats.Switches++
}

// Dormand-Prince 5(4) 系数
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// 五阶解与嵌入四阶解之差
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

func (s *solver) dopriStep(h float64) (bool, float64) {
	if !s.fsal {
		s.eval(s.t, s.y, s.k[0])
		s.fsal = true
	}

	for i := 1; i < 7; i++ {
		for m := 0; m < s.n; m++ {
			var sum float64
			for j := 0; j < i; j++ {
				sum += dpA[i][j] * s.k[j][m]
			}
			s.ytmp[m] = s.y[m] + h*sum
		}
		if i == 5 {
			copy(s.ystage, s.ytmp)
		}
		s.eval(math.Min(s.t+dpC[i]*h, s.tCap), s.ytmp, s.k[i])
	}
	copy(s.ynew, s.ytmp)

	for m := 0; m < s.n; m++ {
		var sum float64
		for j := 0; j < 7; j++ {
			sum += dpE[j] * s.k[j][m]
		}
		s.yerr[m] = h * sum
	}
	errNorm := s.errNorm(s.y, s.ynew, s.yerr)

	if errNorm > 1 || math.IsNaN(errNorm) {
		fac := 0.2
		if !math.IsNaN(errNorm) {
			fac = math.Max(0.2, safety*math.Pow(errNorm, -1.0/5))
		}
		return false, h * fac
	}

	// 刚性检测: h * |k7 - k6| / |y7 - y6|
	var num, den float64
	for m := 0; m < s.n; m++ {
		dk := s.k[6][m] - s.k[5][m]
		dy := s.ynew[m] - s.ystage[m]
		num += dk * dk
		den += dy * dy
	}
	if den > 0 {
		if h*math.Sqrt(num/den) > stiffLimit {
			s.nonStiffCount = 0
			s.stiffCount++
			if s.stiffCount >= switchAfter && s.sinceSwitch >= holdSteps {
				defer s.setStiff(true)
			}
		} else {
			s.nonStiffCount++
			if s.nonStiffCount >= resetAfter {
				s.stiffCount = 0
			}
		}
	}

	s.t += h
	copy(s.y, s.ynew)
	s.k[0], s.k[6] = s.k[6], s.k[0]

	fac := 10.0
	if errNorm > 0 {
		fac = math.Min(10, math.Max(0.2, safety*math.Pow(errNorm, -1.0/5)))
	}
	return true, h * fac
}

// Rosenbrock 2(3) 系数
var (
	rosD   = 1 / (2 + math.Sqrt2)
	rosE32 = 6 + math.Sqrt2
)

// W = I - h*d*J，非自治项 h*d*df/dt 加到第一、三级
func (s *solver) rosenbrockStep(h float64) (bool, float64, error) {
	s.eval(s.t, s.y, s.f0)
	s.jacobian()
	s.timeDerivative(h)

	s.w.Scale(-rosD*h, s.jac)
	for i := 0; i < s.n; i++ {
		s.w.Set(i, i, s.w.At(i, i)+1)
	}
	s.lu.Factorize(s.w)

	for i := 0; i < s.n; i++ {
		s.fy[i] = s.f0[i] + h*rosD*s.ft[i]
	}
	if err := s.solve(s.k1, s.fy); err != nil {
		return false, 0, err
	}
	k1 := s.k1.RawVector().Data
	for i := 0; i < s.n; i++ {
		s.ytmp[i] = s.y[i] + 0.5*h*k1[i]
	}
	s.eval(math.Min(s.t+0.5*h, s.tCap), s.ytmp, s.f1)

	for i := 0; i < s.n; i++ {
		s.fy[i] = s.f1[i] - k1[i]
	}
	if err := s.solve(s.k2, s.fy); err != nil {
		return false, 0, err
	}
	k2 := s.k2.RawVector().Data
	for i := 0; i < s.n; i++ {
		k2[i] += k1[i]
		s.ynew[i] = s.y[i] + h*k2[i]
	}
	s.eval(math.Min(s.t+h, s.tCap), s.ynew, s.f2)

	for i := 0; i < s.n; i++ {
		s.fy[i] = s.f2[i] - rosE32*(k2[i]-s.f1[i]) - 2*(k1[i]-s.f0[i]) + h*rosD*s.ft[i]
	}
	if err := s.solve(s.k3, s.fy); err != nil {
		return false, 0, err
	}
	k3 := s.k3.RawVector().Data
	for i := 0; i < s.n; i++ {
		s.yerr[i] = h / 6 * (k1[i] - 2*k2[i] + k3[i])
	}

	errNorm := s.errNorm(s.y, s.ynew, s.yerr)
	if errNorm > 1 || math.IsNaN(errNorm) {
		fac := 0.2
		if !math.IsNaN(errNorm) {
			fac = math.Max(0.2, safety*math.Pow(errNorm, -1.0/3))
		}
		return false, h * fac, nil
	}

	s.stats.StiffSteps++
	if h*mat.Norm(s.jac, math.Inf(1)) < stiffLimit {
		s.nonStiffCount++
		if s.nonStiffCount >= switchAfter && s.sinceSwitch >= holdSteps {
			defer s.setStiff(false)
		}
	} else {
		s.nonStiffCount = 0
	}

	s.t += h
	copy(s.y, s.ynew)
	s.fsal = false

	fac := 5.0
	if errNorm > 0 {
		fac = math.Min(5, math.Max(0.2, safety*math.Pow(errNorm, -1.0/3)))
	}
	return true, h * fac, nil
}

func (s *solver) solve(dst *mat.VecDense, b []float64) error {
	copy(s.rhs.RawVector().Data, b)
	err := s.lu.SolveVecTo(dst, false, s.rhs)
	if err != nil {
		// 病态矩阵仍给出解
		var c mat.Condition
		if errors.As(err, &c) {
			return nil
		}
		return err
	}
	return nil
}

// 前向差分雅可比矩阵
func (s *solver) jacobian() {
	copy(s.ytmp, s.y)
	for j := 0; j < s.n; j++ {
		yj := s.ytmp[j]
		d := sqrtEps * math.Max(math.Abs(yj), 1)
		s.ytmp[j] = yj + d
		s.eval(s.t, s.ytmp, s.fy)
		for i := 0; i < s.n; i++ {
			s.jac.Set(i, j, (s.fy[i]-s.f0[i])/d)
		}
		s.ytmp[j] = yj
	}
}

// 前向差分 df/dt，不越过断点
func (s *solver) timeDerivative(h float64) {
	d := sqrtEps * math.Max(math.Abs(s.t), h)
	if s.t+d > s.tCap {
		d = -d
	}
	s.eval(s.t+d, s.y, s.fy)
	for i := 0; i < s.n; i++ {
		s.ft[i] = (s.fy[i] - s.f0[i]) / d
	}
}
