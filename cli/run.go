package cli

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/exposure"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in trap parameter sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if name, _ := cmd.Flags().GetString("show"); name != "" {
			m, err := material.Preset(name)
			if err != nil {
				return err
			}
			return toml.NewEncoder(out).Encode(m)
		}
		for _, name := range material.Names() {
			m, _ := material.Preset(name)
			names := retention.FromMaterial(m).Names()
			fmt.Fprintf(out, "%s\t%d traps %v\n", name, len(names), names)
		}
		return nil
	},
}

var steadyCmd = &cobra.Command{
	Use:   "steady",
	Short: "Steady-state trap densities and hydrogen retention at one operating point",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMaterial()
		if err != nil {
			return err
		}
		T, _ := cmd.Flags().GetFloat64("temperature")
		dpa, _ := cmd.Flags().GetFloat64("dpa")
		rm := retention.FromMaterial(m)
		s := rm.Evaluate(model.OperatingPoint{DamageRate: model.DPAPerFPY(dpa), Temperature: T})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "material\t%s\n", m.Name)
		fmt.Fprintf(w, "T (K)\t%g\n", T)
		fmt.Fprintf(w, "damage (dpa/fpy)\t%g\n", dpa)
		fmt.Fprintf(w, "retention (H/m2)\t%.4e\n", s.Total)
		fmt.Fprintf(w, "mobile (H/m3)\t%.4e\n", s.Mobile)
		fmt.Fprintf(w, "trapped (H/m3)\t%.4e\n", s.Trapped)
		fmt.Fprintln(w, "\ntrap\tdensity (m-3)\tfilling ratio")
		for i, name := range rm.Names() {
			fmt.Fprintf(w, "%s\t%.4e\t%.4f\n", name, s.Densities[i], s.FillingRatios[i])
		}
		return w.Flush()
	},
}

var transientCmd = &cobra.Command{
	Use:   "transient",
	Short: "Trap density of one damaged trap versus time at constant temperature and damage rate",
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
		T, _ := cmd.Flags().GetFloat64("temperature")
		dpa, _ := cmd.Flags().GetFloat64("dpa")
		n0, _ := cmd.Flags().GetFloat64("n0")
		beta, _ := cmd.Flags().GetFloat64("beta")
		ts, err := outputTimes(cmd, floatOpt(cmd, "duration", cfg.Sweep.Duration))
		if err != nil {
			return err
		}

		p := kinetics.ParamsOf(trap)
		point := model.OperatingPoint{DamageRate: model.DPAPerFPY(dpa), Temperature: T}
		var ns []float64
		if beta != 0 {
			p.Beta = beta
			ns, err = kinetics.TransientBeta(p, point, n0, ts, cfg.ODEOptions())
		} else {
			ns, err = kinetics.Transient(p, point, n0, ts, cfg.ODEOptions())
		}
		if err != nil {
			return err
		}

		t := sweep.NewTable([]string{"t", "n", "n_analytical"}, len(ts))
		for i := range ts {
			exact := math.NaN()
			if beta == 0 {
				exact = kinetics.Analytical(ts[i], p.K, p.NMax, point.DamageRate.PerSecond(), p.A0, p.EA, T, n0)
			}
			t.Rows[i] = []float64{ts[i], ns[i], exact}
		}
		entry := log.WithFields(log.Fields{"trap": trap.Name, "T": T, "dpa_per_fpy": dpa, "n_end": ns[len(ns)-1]})
		if tSat, ok := kinetics.SaturationTime(ts, ns, cfg.Sweep.Threshold); ok {
			entry = entry.WithField("t_saturation", tSat)
		}
		entry.Info("transient finished")
		return writeTable(cmd, t)
	},
}

var annealCmd = &cobra.Command{
	Use:   "anneal",
	Short: "Damage at one temperature, then anneal without damage at another",
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
		dpa, _ := cmd.Flags().GetFloat64("dpa")
		tDamage, _ := cmd.Flags().GetFloat64("damage-time")
		TDamage, _ := cmd.Flags().GetFloat64("damage-temperature")
		tAnneal, _ := cmd.Flags().GetFloat64("anneal-time")
		TAnneal, _ := cmd.Flags().GetFloat64("anneal-temperature")
		n0, _ := cmd.Flags().GetFloat64("n0")
		ts, err := outputTimes(cmd, tDamage+tAnneal)
		if err != nil {
			return err
		}

		phi := model.DPAPerFPY(dpa)
		s := exposure.NewDamageThenAnneal(tDamage, phi, TDamage, TAnneal)
		log.WithFields(s.LogFields()).Info("exposure schedule")

		ns, err := kinetics.DamageThenAnneal(kinetics.ParamsOf(trap), tDamage, phi, TDamage, TAnneal, n0, ts, cfg.ODEOptions())
		if err != nil {
			return err
		}
		t := sweep.NewTable([]string{"t", "n", "T", "phase"}, len(ts))
		for i, ti := range ts {
			t.Rows[i] = []float64{ti, ns[i], s.At(ti).Temperature, float64(s.WhichPhase(ti))}
		}
		return writeTable(cmd, t)
	},
}

var chartimeCmd = &cobra.Command{
	Use:   "chartime",
	Short: "Time for a damaged trap to reach its steady-state density over a (T, damage) grid",
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
		t, err := driver(cmd).CharacteristicTimes(cmd.Context(), kinetics.ParamsOf(trap), temps, dpas)
		if err != nil {
			return err
		}
		return writeTable(cmd, t)
	},
}
