package retention

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

func preset(t *testing.T, name string) *Model {
	t.Helper()
	m, err := material.Preset(name)
	if err != nil {
		t.Fatal(err)
	}
	return FromMaterial(m)
}

func TestPublishedRetention(t *testing.T) {
	m := preset(t, material.SchwartzSelinger6Trap)
	cases := []struct {
		dpaPerFPY float64
		want      float64
	}{
		{1e-3, 8.61e18},
		{1e-1, 6.28e20},
		{9, 3.4297e22},
		{10, 3.65e22},
	}
	for _, c := range cases {
		got := m.Evaluate(model.OperatingPoint{DamageRate: model.DPAPerFPY(c.dpaPerFPY), Temperature: 761}).Total
		if math.Abs(got-c.want)/c.want > 2e-3 {
			t.Errorf("%v dpa/fpy: retention %.4e want %.4e", c.dpaPerFPY, got, c.want)
		}
	}
}

func TestFiveTrapRetention(t *testing.T) {
	m := preset(t, material.Analytical5Trap)
	cases := []struct {
		dpaPerFPY float64
		want      float64
	}{
		{0, 5.60e17},
		{1e-3, 6.86e18},
		{1e-1, 6.263e20},
		{10, 3.6527e22},
	}
	for _, c := range cases {
		got := m.Evaluate(model.OperatingPoint{DamageRate: model.DPAPerFPY(c.dpaPerFPY), Temperature: 761}).Total
		if math.Abs(got-c.want)/c.want > 5e-3 {
			t.Errorf("%v dpa/fpy: retention %.4e want %.4e", c.dpaPerFPY, got, c.want)
		}
	}
}

func TestAggregateComposition(t *testing.T) {
	m := preset(t, material.SchwartzSelinger6Trap)
	s := m.Evaluate(model.OperatingPoint{DamageRate: model.DPAPerFPY(1), Temperature: 700})
	if len(s.Densities) != 6 || len(s.FillingRatios) != 6 {
		t.Fatalf("expected per-species slices, got %d/%d", len(s.Densities), len(s.FillingRatios))
	}
	var ct float64
	for i := range s.Densities {
		if s.FillingRatios[i] <= 0 || s.FillingRatios[i] >= 1 {
			t.Errorf("filling ratio %d out of (0,1): %v", i, s.FillingRatios[i])
		}
		if s.Densities[i] > m.Species[i].MaxDensity {
			t.Errorf("density %d above max: %v", i, s.Densities[i])
		}
		ct += s.FillingRatios[i] * s.Densities[i]
	}
	if math.Abs(ct-s.Trapped) > 1e-9*s.Trapped {
		t.Errorf("trapped sum %v, want %v", s.Trapped, ct)
	}
	if want := m.Thickness * (s.Mobile + s.Trapped); math.Abs(s.Total-want) > 1e-9*want {
		t.Errorf("total %v want %v", s.Total, want)
	}
	if s.Densities[0] != 8.22e25 || s.Densities[1] != 2.53e25 {
		t.Errorf("intrinsic densities changed: %v", s.Densities[:2])
	}
}

func TestRetentionMonotonicInDamage(t *testing.T) {
	m := preset(t, material.Analytical5Trap)
	for _, T := range []float64{400, 761, 1200} {
		prev := 0.0
		for _, d := range floats.LogSpan(make([]float64, 25), 1e-5, 1e3) {
			r := m.Evaluate(model.OperatingPoint{DamageRate: model.DPAPerFPY(d), Temperature: T}).Total
			if r < prev {
				t.Fatalf("T=%v: retention decreased with damage at %v dpa/fpy", T, d)
			}
			prev = r
		}
	}
}

func TestNoDamageLeavesOnlyIntrinsic(t *testing.T) {
	m := preset(t, material.Analytical5Trap)
	s := m.Evaluate(model.OperatingPoint{Temperature: 761})
	for i, n := range s.Densities[1:] {
		if n != 0 {
			t.Errorf("damage trap %d should be empty without damage, got %v", i+1, n)
		}
	}
	if names := m.Names(); names[0] != "trap_1" || len(names) != 5 {
		t.Errorf("unexpected names %v", names)
	}
}

func TestWithDensitiesMatchesSteadyState(t *testing.T) {
	m := preset(t, material.SchwartzSelinger6Trap)
	p := model.OperatingPoint{DamageRate: model.DPAPerFPY(0.1), Temperature: 900}
	want := m.Evaluate(p)
	got, err := m.EvaluateWithDensities(p.Temperature, append([]float64(nil), want.Densities...))
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != want.Total || !floats.Equal(got.FillingRatios, want.FillingRatios) {
		t.Errorf("same densities should give the same state: %+v vs %+v", got, want)
	}

	// 陷阱全空时只剩可动氢
	empty, err := m.EvaluateWithDensities(p.Temperature, make([]float64, len(m.Species)))
	if err != nil {
		t.Fatal(err)
	}
	if empty.Trapped != 0 || empty.Total != m.Thickness*empty.Mobile {
		t.Errorf("empty traps: %+v", empty)
	}
}

func TestWithDensitiesShape(t *testing.T) {
	m := preset(t, material.SchwartzSelinger6Trap)
	var se *ShapeError
	_, err := m.EvaluateWithDensities(900, make([]float64, len(m.Species)-1))
	if !errors.As(err, &se) || se.Species != len(m.Species) || se.Densities != len(m.Species)-1 {
		t.Errorf("expected shape error, got %v", err)
	}
	if _, err := WithDensities(900, m.Species, nil, m.Implantation, m.Thickness); !errors.As(err, &se) {
		t.Errorf("missing densities should fail, got %v", err)
	}
}
