package kinetics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/rate"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/steady"
)

func TestAnalyticalInitialAndSteadyValue(t *testing.T) {
	K, nMax, phi, A0, EA, T := 4e27, 4.5e25, 1e-6, 6.18e-3, 0.28, 761.0
	for _, n0 := range []float64{0, 1e24, 4e25} {
		if got := Analytical(0, K, nMax, phi, A0, EA, T, n0); math.Abs(got-n0) > 1e-9*nMax {
			t.Errorf("t=0: got %v want %v", got, n0)
		}
		ss := steady.TrapDensity(T, phi, K, nMax, A0, EA)
		if got := Analytical(1e9, K, nMax, phi, A0, EA, T, n0); math.Abs(got-ss) > 1e-9*ss {
			t.Errorf("t->inf: got %v want %v", got, ss)
		}
	}
}

func TestAnalyticalDegenerate(t *testing.T) {
	if got := Analytical(100, 1e27, 1e25, 0, 0, 0.3, 500, 3e24); got != 3e24 {
		t.Errorf("degenerate case should return n0, got %v", got)
	}
}

func TestIntegrateMatchesAnalytical(t *testing.T) {
	cases := []struct {
		K, nMax, phi, A0, EA, T, n0, tEnd float64
	}{
		{1, 5, 1, 0.1, 0.1034, 1000, 1, 60},
		{4e27, 4.5e25, 1e-5, 6.18e-3, 0.28, 761, 0, 1e5},
		{1.5e28, 5.2e25, 0, 6.18e-3, 0.28, 1200, 3e25, 3600},
	}
	for _, c := range cases {
		ts := floats.Span(make([]float64, 30), 0, c.tEnd)
		p := Params{K: c.K, NMax: c.nMax, A0: c.A0, EA: c.EA}
		point := model.OperatingPoint{DamageRate: model.DPAPerSecond(c.phi), Temperature: c.T}
		ns, err := Transient(p, point, c.n0, ts, nil)
		if err != nil {
			t.Fatal(err)
		}
		scale := math.Max(c.nMax, c.n0)
		for i, ti := range ts {
			want := Analytical(ti, c.K, c.nMax, c.phi, c.A0, c.EA, c.T, c.n0)
			if math.Abs(ns[i]-want) > 1e-3*scale {
				t.Errorf("t=%v: numerical %v analytical %v", ti, ns[i], want)
			}
		}
	}
}

func TestIntegrateMatchesAnalyticalGrid(t *testing.T) {
	// 四种损伤陷阱的 (K, nMax)
	traps := []struct{ K, nMax float64 }{
		{1.5e28, 5.2e25},
		{4.0e27, 4.5e25},
		{3.0e27, 4.0e25},
		{9.0e27, 4.2e25},
	}
	ts := append([]float64{0}, floats.LogSpan(make([]float64, 40), 1, 1e9)...)
	worst := 0.0
	for _, T := range []float64{400, 700, 1000, 1300} {
		for _, dpa := range []float64{1e-5, 1e-3, 1e-1, 10, 1e3} {
			point := model.OperatingPoint{DamageRate: model.DPAPerFPY(dpa), Temperature: T}
			for _, trap := range traps {
				p := Params{K: trap.K, NMax: trap.nMax, A0: OptimisedA0, EA: OptimisedEA}
				ns, err := Transient(p, point, 0, ts, nil)
				if err != nil {
					t.Fatalf("T=%v dpa=%v: %v", T, dpa, err)
				}
				for i := 1; i < len(ts); i++ {
					want := Analytical(ts[i], p.K, p.NMax, point.DamageRate.PerSecond(), p.A0, p.EA, T, 0)
					worst = math.Max(worst, math.Abs(ns[i]-want)/want)
				}
			}
		}
	}
	if worst > 1e-5 {
		t.Errorf("worst relative deviation from the analytical solution %v", worst)
	}
}

func TestCreationRateWithBeta(t *testing.T) {
	if a, b := CreationRateWithBeta(1e24, 0, 1e-6, 4e27, 4.5e25, 6e-3, 0, 0.28, 700),
		CreationRate(1e24, 0, 1e-6, 4e27, 4.5e25, 6e-3, 0.28, 700); math.Abs(a-b) > 1e-12*math.Abs(b) {
		t.Errorf("beta=0 should reduce to plain rate: %v vs %v", a, b)
	}
}

func TestDamageThenAnnealing(t *testing.T) {
	p := Params{K: 4e27, NMax: 4.5e25, A0: 6.18e-3, EA: 0.28}
	tDamage := 86400.0
	phi := model.DPAPerSecond(1 / tDamage)

	if r := DamageThenAnnealing(0, 10, tDamage, phi.PerSecond(), p.K, p.NMax, p.A0, p.EA, 370, 1200); r <= 0 {
		t.Errorf("damage phase should create traps, got %v", r)
	}
	if r := DamageThenAnnealing(1e25, tDamage, tDamage, phi.PerSecond(), p.K, p.NMax, p.A0, p.EA, 370, 1200); r >= 0 {
		t.Errorf("anneal phase should remove traps, got %v", r)
	}

	ts := floats.Span(make([]float64, 901), 0, 90000)
	ns, err := DamageThenAnneal(p, tDamage, phi, 370, 1200, 0, ts, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= tDamage && ns[i] < ns[i-1]*(1-1e-6) {
			t.Fatalf("density should rise during damage: n(%v)=%v < n(%v)=%v", ts[i], ns[i], ts[i-1], ns[i-1])
		}
		if ts[i-1] >= tDamage && ns[i] > ns[i-1]*(1+1e-6) {
			t.Fatalf("density should decay during anneal: n(%v)=%v > n(%v)=%v", ts[i], ns[i], ts[i-1], ns[i-1])
		}
	}

	nPeak := Analytical(tDamage, p.K, p.NMax, phi.PerSecond(), p.A0, p.EA, 370, 0)
	if math.Abs(ns[864]-nPeak) > 1e-4*nPeak {
		t.Errorf("end of damage: got %v want %v", ns[864], nPeak)
	}
	want := nPeak * math.Exp(-rate.Annealing(p.A0, p.EA, 1200)*3600)
	if got := ns[len(ns)-1]; math.Abs(got-want) > 1e-4*nPeak {
		t.Errorf("end of anneal: got %v want %v", got, want)
	}
}

func TestAnnealingSim(t *testing.T) {
	n0 := 0.28 * model.TungstenDensity
	temps := []float64{300, 600, 900, 1200}
	got, err := AnnealingSim(OptimisedA0, OptimisedEA, temps, n0, AnnealDuration, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, T := range temps {
		want := n0 * math.Exp(-rate.Annealing(OptimisedA0, OptimisedEA, T)*AnnealDuration)
		if math.Abs(got[i]-want) > 1e-6*n0 {
			t.Errorf("T=%v: got %v want %v", T, got[i], want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i] >= got[i-1] {
			t.Errorf("hotter anneal should remove more traps: %v", got)
		}
	}

	beta, err := AnnealingSimBeta(OptimisedA0, 0, OptimisedEA, temps, n0, AnnealDuration, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(beta, got, 1e-6*n0) {
		t.Errorf("beta=0 should match plain annealing: %v vs %v", beta, got)
	}
}

func TestDamagingSim(t *testing.T) {
	K, nMax := 4e27, 4.5e25
	dpas := floats.Span(make([]float64, 7), 0, 3)
	got, err := DamagingSim(K, nMax, OptimisedA0, OptimisedEA, DamageTemperature, dpas, DamageDuration, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0 {
		t.Errorf("no damage should create no traps, got %v", got[0])
	}
	for i, dpa := range dpas {
		want := Analytical(DamageDuration, K, nMax, dpa/DamageDuration, OptimisedA0, OptimisedEA, DamageTemperature, 0)
		if math.Abs(got[i]-want) > 1e-6*nMax {
			t.Errorf("dpa=%v: got %v want %v", dpa, got[i], want)
		}
		if got[i] > nMax {
			t.Errorf("density above nMax: %v", got[i])
		}
	}
}

func TestSaturationTime(t *testing.T) {
	K, nMax, phi, A0, EA, T := 4e27, 4.5e25, 1e-6, 6.18e-3, 0.28, 761.0
	lambda := phi*K/nMax + rate.Annealing(A0, EA, T)
	ts := floats.Span(make([]float64, 10001), 0, 10/lambda)
	ns := make([]float64, len(ts))
	for i, ti := range ts {
		ns[i] = Analytical(ti, K, nMax, phi, A0, EA, T, 0)
	}
	ss := steady.TrapDensity(T, phi, K, nMax, A0, EA)
	for _, threshold := range []float64{0.95, 0.99} {
		got, ok := SaturationTime(ts, ns, threshold)
		if !ok {
			t.Fatalf("threshold %v not reached", threshold)
		}
		// 数值饱和时间以末态密度归一，解析值以稳态密度归一
		want := AnalyticalSaturationTime(threshold*ns[len(ns)-1]/ss, K, nMax, phi, A0, EA, T)
		if math.Abs(got-want) > 3e-3/lambda {
			t.Errorf("threshold %v: got %v want %v", threshold, got, want)
		}
	}

	if got := AnalyticalSaturationTime(0.95, K, nMax, 0, A0, EA, T); !math.IsNaN(got) {
		t.Errorf("no damage has no saturation time, got %v", got)
	}
	if _, ok := SaturationTime(ts, make([]float64, len(ts)), 0.95); ok {
		t.Errorf("all-zero trajectory has no saturation time")
	}
	if _, ok := SaturationTime(ts, ns[:3], 0.95); ok {
		t.Errorf("length mismatch should not report a time")
	}
}
