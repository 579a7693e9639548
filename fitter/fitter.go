// Package fitter 用 Nelder-Mead 单纯形法拟合速率参数，使模型输出逼近参考数据
package fitter

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/deque"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

// 参数为负时返回的误差，用来约束单纯形
const Penalty = 1e30

var ErrDimension = errors.New("fitter: initial guess does not match the number of transforms")

type Problem struct {
	Name      string
	Reference model.ReferenceDataset
	// 模型输出对应的 x 网格
	ModelX []float64
	// 输入为物理参数
	Model      func(params []float64) ([]float64, error)
	Transforms []Transform
	Bounds     []WeightBound
	// 默认初值，位于搜索空间
	InitialGuess []float64
	FAtol        float64
	XAtol        float64
}

// 物理参数下的误差
func (p *Problem) Evaluate(params []float64) (float64, error) {
	ys, err := p.Model(params)
	if err != nil {
		return 0, err
	}
	modelled, err := Interpolate(p.ModelX, ys, p.Reference.X)
	if err != nil {
		return 0, err
	}
	return MeanAbsoluteError(modelled, p.Reference.Y, p.Reference.X, p.Bounds)
}

type Fitter struct {
	Problem    *Problem
	Checkpoint Checkpoint
	// 为 0 时使用 Problem 中的容差
	FAtol float64
	XAtol float64
	// 为 0 表示不限制求值次数
	MaxEvaluations int
	Logger         *log.Entry
}

type Result struct {
	X           []float64
	Params      []float64
	Err         float64
	Evaluations int
	Simulations int
	CacheHits   int
	Status      optimize.Status
}

type evaluation struct {
	x []float64
	f float64
}

// 一次拟合过程中的状态
type run struct {
	ctx    context.Context
	f      *Fitter
	logger *log.Entry
	window *deque.ArrDeque[evaluation]

	count, sims, hits int
	modelErr          error
}

func New(p *Problem, cp Checkpoint) *Fitter {
	if cp == nil {
		cp = NewMemoryCheckpoint()
	}
	return &Fitter{Problem: p, Checkpoint: cp}
}

func (f *Fitter) tolerances() (float64, float64) {
	fatol, xatol := f.FAtol, f.XAtol
	if fatol <= 0 {
		fatol = f.Problem.FAtol
	}
	if xatol <= 0 {
		xatol = f.Problem.XAtol
	}
	return fatol, xatol
}

// Fit 从搜索空间中的 guess 出发最小化误差，guess 为 nil 时使用问题的默认初值
func (f *Fitter) Fit(ctx context.Context, guess []float64) (*Result, error) {
	if guess == nil {
		guess = f.Problem.InitialGuess
	}
	dim := len(guess)
	if dim == 0 || dim != len(f.Problem.Transforms) {
		return nil, ErrDimension
	}
	logger := f.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	fatol, xatol := f.tolerances()

	r := &run{
		ctx:    ctx,
		f:      f,
		logger: logger.WithField("problem", f.Problem.Name),
		window: deque.NewArrDeque[evaluation](dim + 1),
	}

	// gonum 要求给出初始单纯形时同时给出各顶点的函数值
	vertices := InitialSimplex(guess)
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = r.objective(v)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	problem := optimize.Problem{Func: r.objective}
	settings := &optimize.Settings{
		// 第一个顶点即 guess，避免重复求值
		InitValues:      &optimize.Location{F: values[0]},
		FuncEvaluations: f.MaxEvaluations,
		Converger: &toleranceConverger{
			ctx:    ctx,
			window: r.window,
			fatol:  fatol,
			xatol:  xatol,
		},
	}
	method := &optimize.NelderMead{InitialVertices: vertices, InitialValues: values}

	res, err := optimize.Minimize(problem, guess, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && res == nil {
		return nil, fmt.Errorf("fitter: minimize %s: %w", f.Problem.Name, err)
	}
	if r.modelErr != nil && res.F >= Penalty {
		return nil, fmt.Errorf("fitter: model failed for every candidate: %w", r.modelErr)
	}

	out := &Result{
		X:           append([]float64(nil), res.X...),
		Params:      ApplyAll(f.Problem.Transforms, res.X),
		Err:         res.F,
		Evaluations: r.count,
		Simulations: r.sims,
		CacheHits:   r.hits,
		Status:      res.Status,
	}
	r.logger.WithFields(log.Fields{
		"solution":    out.X,
		"params":      out.Params,
		"error":       out.Err,
		"evaluations": out.Evaluations,
		"status":      out.Status,
	}).Info("Solution found")
	return out, err
}

func (r *run) objective(x []float64) float64 {
	f := r.eval(x)
	r.window.AddLast(evaluation{x: append([]float64(nil), x...), f: f})
	return f
}

func (r *run) eval(x []float64) float64 {
	r.count++
	p := r.f.Problem
	params := ApplyAll(p.Transforms, x)
	entry := r.logger.WithFields(log.Fields{
		"i":      r.count,
		"point":  x,
		"params": params,
	})

	for _, v := range params {
		if v < 0 {
			entry.WithField("error", Penalty).Info("Negative parameter")
			return Penalty
		}
	}

	if e, ok, err := r.f.Checkpoint.Lookup(r.ctx, params); err != nil {
		entry.WithError(err).Warn("checkpoint lookup failed")
	} else if ok {
		r.hits++
		entry.WithField("error", e).Info("Found in checkpoint")
		return e
	}

	if r.ctx.Err() != nil {
		return Penalty
	}
	r.sims++
	e, err := p.Evaluate(params)
	if err != nil {
		r.modelErr = err
		entry.WithError(err).Warn("model evaluation failed")
		return Penalty
	}
	if err := r.f.Checkpoint.Record(r.ctx, params, e); err != nil {
		entry.WithError(err).Warn("checkpoint record failed")
	}
	entry.WithField("error", e).Info("New simulation")
	return e
}

// 初始单纯形：每个方向放大 5%，零分量取 0.00025
func InitialSimplex(x0 []float64) [][]float64 {
	const (
		nonzdelt = 0.05
		zdelt    = 0.00025
	)
	vertices := make([][]float64, len(x0)+1)
	vertices[0] = append([]float64(nil), x0...)
	for k := range x0 {
		y := append([]float64(nil), x0...)
		if y[k] != 0 {
			y[k] *= 1 + nonzdelt
		} else {
			y[k] = zdelt
		}
		vertices[k+1] = y
	}
	return vertices
}

// 最近 dim+1 次求值（包括被拒绝的试探点）的函数值与位置都落在当前最优点的容差内时认为收敛。
// gonum 不暴露单纯形顶点，这里用求值窗口近似顶点集合。
type toleranceConverger struct {
	ctx    context.Context
	window *deque.ArrDeque[evaluation]
	fatol  float64
	xatol  float64
}

func (c *toleranceConverger) Init(dim int) {}

func (c *toleranceConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.Failure
	}
	if !c.window.IsFull() {
		return optimize.NotTerminated
	}
	converged := true
	c.window.Traverse(func(i int, e *evaluation) {
		if math.Abs(e.f-loc.F) > c.fatol {
			converged = false
			return
		}
		for j := range e.x {
			if math.Abs(e.x[j]-loc.X[j]) > c.xatol {
				converged = false
				return
			}
		}
	})
	if converged {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}
