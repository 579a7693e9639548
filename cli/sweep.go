package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the model over a temperature x damage rate grid",
	Long: `sweep evaluates the model on a grid of linearly spaced temperatures and
geometrically spaced damage rates (dpa/fpy). Rows are ordered with the damage
rate as the outer loop whatever the number of workers.`,
}

var sweepAnalyticalCmd = &cobra.Command{
	Use:   "analytical",
	Short: "Steady-state retention, trap densities and filling ratios",
	RunE: func(cmd *cobra.Command, args []string) error {
		return retentionSweep(cmd, false)
	},
}

var sweepRetentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Retention with damaged trap densities integrated over --duration instead of steady state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return retentionSweep(cmd, true)
	},
}

func retentionSweep(cmd *cobra.Command, transient bool) error {
	m, err := loadMaterial()
	if err != nil {
		return err
	}
	temps, dpas, err := grid(cmd)
	if err != nil {
		return err
	}
	d := driver(cmd)
	rm := retention.FromMaterial(m)
	var t *sweep.Table
	if transient {
		t, err = d.TransientRetention(cmd.Context(), rm, temps, dpas, floatOpt(cmd, "duration", cfg.Sweep.Duration))
	} else {
		t, err = d.Analytical(cmd.Context(), rm, temps, dpas)
	}
	if err != nil {
		return err
	}
	return writeTable(cmd, t)
}

var sweepTransientCmd = &cobra.Command{
	Use:   "transient",
	Short: "Density of one damaged trap integrated from zero at every grid point, with saturation times",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMaterial()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("trap")
		trap, err := damagedTrap(m, name)
		if err != nil {
			return err
		}
		temps, dpas, err := grid(cmd)
		if err != nil {
			return err
		}
		ts, err := outputTimes(cmd, floatOpt(cmd, "duration", cfg.Sweep.Duration))
		if err != nil {
			return err
		}
		res, err := driver(cmd).TrapTransient(cmd.Context(), kinetics.ParamsOf(trap), temps, dpas, ts)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("trajectories"); path != "" {
			if err := writeTableTo(cmd.OutOrStdout(), path, trajectories(res)); err != nil {
				return err
			}
		}
		return writeTable(cmd, res.Summary)
	},
}

// 每列一个工况点
func trajectories(res *sweep.TransientSweep) *sweep.Table {
	columns := []string{"t"}
	for i := range res.Densities {
		columns = append(columns, fmt.Sprintf("n_%d", i))
	}
	t := sweep.NewTable(columns, len(res.Times))
	for k, tk := range res.Times {
		row := make([]float64, len(columns))
		row[0] = tk
		for i, ns := range res.Densities {
			row[i+1] = ns[k]
		}
		t.Rows[k] = row
	}
	return t
}

var sweepCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect final values from solver results stored under <root>/dpa=<dpa>/T=<T>/",
	RunE: func(cmd *cobra.Command, args []string) error {
		temps, dpas, err := grid(cmd)
		if err != nil {
			return err
		}
		root := stringOpt(cmd, "root", cfg.Sweep.ResultsRoot)
		column, _ := cmd.Flags().GetString("column")
		t, err := driver(cmd).Collect(cmd.Context(), root, temps, dpas, column)
		if err != nil {
			return err
		}
		return writeTable(cmd, t)
	},
}
