package sweep

import (
	"context"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
)

// 结果表前两列
const (
	ColTemperature = "T"
	ColDamage      = "dpa_per_fpy"
)

func speciesColumns(prefix string, names []string) []string {
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = prefix + n
	}
	return cols
}

// 稳态模型在 temps × dpas 网格上的滞留量、各陷阱密度和填充率
func (d *Driver) Analytical(ctx context.Context, m *retention.Model, temps, dpas []float64) (*Table, error) {
	names := m.Names()
	columns := []string{ColTemperature, ColDamage, "retention", "mobile", "trapped"}
	columns = append(columns, speciesColumns("n_", names)...)
	columns = append(columns, speciesColumns("fr_", names)...)

	points := Points(temps, dpas)
	return d.run(ctx, "analytical", columns, len(points), func(i int) ([]float64, error) {
		p := points[i]
		s := m.Evaluate(p)
		row := []float64{p.Temperature, p.DamageRate.PerFPY(), s.Total, s.Mobile, s.Trapped}
		row = append(row, s.Densities...)
		return append(row, s.FillingRatios...), nil
	})
}
