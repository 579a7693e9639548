package exposure

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

// 辐照历史：按时间顺序排列的若干阶段，每个阶段损伤速率和温度恒定

const (
	Phase0 = 0 // 损伤阶段
	Phase1 = 1 // 退火阶段
)

var ErrEmptySchedule = errors.New("exposure: schedule has no phases")

type Phase struct {
	Name     string
	Duration float64 // s
	Point    model.OperatingPoint
}

type Schedule struct {
	Phases []Phase
	// 各阶段结束时刻
	ends []float64
}

func NewSchedule(phases ...Phase) (*Schedule, error) {
	if len(phases) == 0 {
		return nil, ErrEmptySchedule
	}
	s := &Schedule{Phases: phases, ends: make([]float64, len(phases))}
	var t float64
	for i, p := range phases {
		if p.Duration < 0 {
			return nil, fmt.Errorf("exposure: phase %d has negative duration %g", i, p.Duration)
		}
		t += p.Duration
		s.ends[i] = t
	}
	return s, nil
}

// 先在 (phi, TDamage) 下辐照 tDamage 秒，随后在 TAnneal 下无损伤退火
func NewDamageThenAnneal(tDamage float64, phi model.DamageRate, TDamage, TAnneal float64) *Schedule {
	s, _ := NewSchedule(
		Phase{Name: "damage", Duration: tDamage, Point: model.OperatingPoint{DamageRate: phi, Temperature: TDamage}},
		Phase{Name: "anneal", Point: model.OperatingPoint{Temperature: TAnneal}},
	)
	return s
}

// 获取 t 时刻所在阶段，t 恰好等于阶段结束时刻时属于下一阶段，
// 超过最后阶段后保持最后阶段
func (s *Schedule) WhichPhase(t float64) int {
	for i, end := range s.ends[:len(s.ends)-1] {
		if t < end {
			return i
		}
	}
	return len(s.ends) - 1
}

func (s *Schedule) At(t float64) model.OperatingPoint {
	return s.Phases[s.WhichPhase(t)].Point
}

// 阶段切换时刻，积分时作为断点
func (s *Schedule) Breakpoints() []float64 {
	return append([]float64(nil), s.ends[:len(s.ends)-1]...)
}

// 总时长
func (s *Schedule) Duration() float64 {
	return s.ends[len(s.ends)-1]
}

func (s *Schedule) LogFields() log.Fields {
	fields := log.Fields{"phases": len(s.Phases)}
	for i, p := range s.Phases {
		fields[fmt.Sprintf("phase%d", i)] = fmt.Sprintf("%s %gs phi=%.3e dpa/s T=%gK",
			p.Name, p.Duration, p.Point.DamageRate.PerSecond(), p.Point.Temperature)
	}
	return fields
}
