package exposure

import (
	"errors"
	"testing"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

func TestWhichPhase(t *testing.T) {
	s := NewDamageThenAnneal(100, model.DPAPerSecond(1e-5), 370, 800)
	cases := []struct {
		t    float64
		want int
	}{
		{0, Phase0}, {99.9, Phase0}, {100, Phase1}, {1e6, Phase1},
	}
	for _, c := range cases {
		if got := s.WhichPhase(c.t); got != c.want {
			t.Errorf("WhichPhase(%v)=%d want %d", c.t, got, c.want)
		}
	}
	if p := s.At(50); p.Temperature != 370 || p.DamageRate.PerSecond() != 1e-5 {
		t.Errorf("unexpected damage phase point %+v", p)
	}
	if p := s.At(150); p.Temperature != 800 || p.DamageRate != 0 {
		t.Errorf("unexpected anneal phase point %+v", p)
	}
	if b := s.Breakpoints(); len(b) != 1 || b[0] != 100 {
		t.Errorf("unexpected breakpoints %v", b)
	}
}

func TestNewScheduleErrors(t *testing.T) {
	if _, err := NewSchedule(); !errors.Is(err, ErrEmptySchedule) {
		t.Errorf("expected ErrEmptySchedule, got %v", err)
	}
	if _, err := NewSchedule(Phase{Duration: -1}); err == nil {
		t.Errorf("expected error for negative duration")
	}
}

func TestMultiPhase(t *testing.T) {
	s, err := NewSchedule(
		Phase{Duration: 10, Point: model.OperatingPoint{Temperature: 300}},
		Phase{Duration: 20, Point: model.OperatingPoint{Temperature: 400}},
		Phase{Duration: 5, Point: model.OperatingPoint{Temperature: 500}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if s.Duration() != 35 {
		t.Errorf("duration %v", s.Duration())
	}
	if s.At(15).Temperature != 400 || s.At(31).Temperature != 500 || s.At(40).Temperature != 500 {
		t.Errorf("unexpected phase lookup")
	}
	if len(s.LogFields()) != 4 {
		t.Errorf("unexpected log fields %v", s.LogFields())
	}
}
