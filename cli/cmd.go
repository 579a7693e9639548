// Package cli 提供 trapkin 命令行
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/config"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

// 当前命令使用的配置，由 Root 的 PersistentPreRunE 加载
var cfg *config.Config

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	def := config.Default()
	gridSets := []*pflag.FlagSet{sweepCmd.PersistentFlags(), chartimeCmd.Flags()}
	trapSets := []*pflag.FlagSet{transientCmd.Flags(), annealCmd.Flags(), chartimeCmd.Flags(), sweepTransientCmd.Flags()}
	outSets := []*pflag.FlagSet{transientCmd.Flags(), annealCmd.Flags(), chartimeCmd.Flags(), sweepCmd.PersistentFlags()}

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "ini configuration file",
			defaultVal: config.DefaultPath,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "log-level",
			usage:      "overrides [log] level (debug, info, warn, error)",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "output",
			shorthand:  "o",
			usage:      "CSV output file, standard output when empty",
			defaultVal: "",
			flagsets:   outSets,
		},
		{
			name:       "temperature",
			shorthand:  "T",
			usage:      "temperature (K)",
			defaultVal: 761.0,
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags(), transientCmd.Flags()},
		},
		{
			name:       "dpa",
			usage:      "damage rate (dpa/fpy)",
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{steadyCmd.Flags(), transientCmd.Flags(), annealCmd.Flags()},
		},
		{
			name:       "trap",
			usage:      "damaged trap species name, the first damaged trap when empty",
			defaultVal: "",
			flagsets:   trapSets,
		},
		{
			name:       "duration",
			usage:      "exposure time (s)",
			defaultVal: def.Sweep.Duration,
			flagsets:   []*pflag.FlagSet{transientCmd.Flags(), sweepCmd.PersistentFlags()},
		},
		{
			name:       "points",
			usage:      "number of output times",
			defaultVal: 1000,
			flagsets:   []*pflag.FlagSet{transientCmd.Flags(), annealCmd.Flags(), sweepTransientCmd.Flags()},
		},
		{
			name:       "n0",
			usage:      "initial trap density (m^-3)",
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{transientCmd.Flags(), annealCmd.Flags()},
		},
		{
			name:       "beta",
			usage:      "exponent of the T^beta annealing correction, 0 disables it",
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{transientCmd.Flags()},
		},
		{
			name:       "damage-time",
			usage:      "damage phase duration (s)",
			defaultVal: float64(3600 * 24),
			flagsets:   []*pflag.FlagSet{annealCmd.Flags()},
		},
		{
			name:       "damage-temperature",
			usage:      "temperature during damage (K)",
			defaultVal: 370.0,
			flagsets:   []*pflag.FlagSet{annealCmd.Flags()},
		},
		{
			name:       "anneal-time",
			usage:      "annealing phase duration (s)",
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{annealCmd.Flags()},
		},
		{
			name:       "anneal-temperature",
			usage:      "annealing temperature (K)",
			defaultVal: 800.0,
			flagsets:   []*pflag.FlagSet{annealCmd.Flags()},
		},
		{
			name:       "t-min",
			usage:      "lowest temperature of the grid (K)",
			defaultVal: def.Sweep.TMin,
			flagsets:   gridSets,
		},
		{
			name:       "t-max",
			usage:      "highest temperature of the grid (K)",
			defaultVal: def.Sweep.TMax,
			flagsets:   gridSets,
		},
		{
			name:       "n-t",
			usage:      "number of temperatures",
			defaultVal: def.Sweep.NT,
			flagsets:   gridSets,
		},
		{
			name:       "dpa-min",
			usage:      "lowest damage rate of the geometric grid (dpa/fpy)",
			defaultVal: def.Sweep.DPAMin,
			flagsets:   gridSets,
		},
		{
			name:       "dpa-max",
			usage:      "highest damage rate of the geometric grid (dpa/fpy)",
			defaultVal: def.Sweep.DPAMax,
			flagsets:   gridSets,
		},
		{
			name:       "n-dpa",
			usage:      "number of damage rates",
			defaultVal: def.Sweep.NDPA,
			flagsets:   gridSets,
		},
		{
			name:       "workers",
			usage:      "number of concurrent grid points",
			defaultVal: def.Sweep.Workers,
			flagsets:   []*pflag.FlagSet{sweepCmd.PersistentFlags(), chartimeCmd.Flags()},
		},
		{
			name:       "threshold",
			usage:      "saturation threshold, fraction of the steady-state density",
			defaultVal: def.Sweep.Threshold,
			flagsets:   []*pflag.FlagSet{chartimeCmd.Flags(), sweepTransientCmd.Flags()},
		},
		{
			name:       "root",
			usage:      "directory holding the solver results",
			defaultVal: def.Sweep.ResultsRoot,
			flagsets:   []*pflag.FlagSet{sweepCollectCmd.Flags()},
		},
		{
			name:       "column",
			usage:      "column of derived_quantities.csv to collect",
			defaultVal: sweep.ColRetention,
			flagsets:   []*pflag.FlagSet{sweepCollectCmd.Flags()},
		},
		{
			name:       "trajectories",
			usage:      "optional CSV file for the full density trajectories",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{sweepTransientCmd.Flags()},
		},
		{
			name:       "beta-variant",
			usage:      "fit (A0, beta, EA) with the T^beta annealing correction",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{fitAnnealingCmd.Flags()},
		},
		{
			name:       "selinger-trap",
			usage:      "built-in damaged trap dataset (1-4)",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{fitDamagingCmd.Flags()},
		},
		{
			name:       "reference",
			usage:      "two-column CSV reference dataset, built-in data when empty",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name:       "guess",
			usage:      "initial guess in search space, problem default when empty",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name:       "from-csv",
			usage:      "preload the checkpoint from a CSV of previous evaluations (params..., err)",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name:       "dump",
			usage:      "write every evaluation to this CSV file after fitting",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fitCmd.PersistentFlags()},
		},
		{
			name:       "show",
			usage:      "print the named preset as TOML",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{presetsCmd.Flags()},
		},
		{
			name:       "addr",
			usage:      "listen address",
			defaultVal: def.Server.Addr,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
		}
	}

	Root.AddCommand(presetsCmd, steadyCmd, transientCmd, annealCmd, chartimeCmd, fitCmd, sweepCmd, serveCmd)
	fitCmd.AddCommand(fitAnnealingCmd, fitDamagingCmd)
	sweepCmd.AddCommand(sweepAnalyticalCmd, sweepTransientCmd, sweepRetentionCmd, sweepCollectCmd)
}

var Root = &cobra.Command{
	Use:   "trapkin",
	Short: "Neutron damage trap creation and hydrogen retention in tungsten.",
	Long: `trapkin evaluates the trap creation and annealing model for neutron-damaged
tungsten: steady-state trap densities and hydrogen retention, transient trap
density evolution, fits of the rate parameters to experimental data and
sweeps over temperature and damage rate.

Settings are read from an ini file (--config) and can be overridden by flags.`,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setConfig(cmd) },
}

func setConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		c.Log.Level = level
	}
	if err := c.SetupLogging(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Execute 运行命令，Ctrl-C 取消正在进行的拟合或扫描
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Root.ExecuteContext(ctx)
}

// 命令行给出时用命令行的值，否则用配置文件的值
func floatOpt(cmd *cobra.Command, name string, fromConfig float64) float64 {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v, _ := cmd.Flags().GetFloat64(name)
		return v
	}
	return fromConfig
}

func intOpt(cmd *cobra.Command, name string, fromConfig int) int {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	return fromConfig
}

func stringOpt(cmd *cobra.Command, name string, fromConfig string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fromConfig
}

// 温度线性网格与损伤速率等比网格
func grid(cmd *cobra.Command) ([]float64, []float64, error) {
	s := cfg.Sweep
	nT, nDPA := intOpt(cmd, "n-t", s.NT), intOpt(cmd, "n-dpa", s.NDPA)
	dpaMin, dpaMax := floatOpt(cmd, "dpa-min", s.DPAMin), floatOpt(cmd, "dpa-max", s.DPAMax)
	if nT < 1 || nDPA < 1 {
		return nil, nil, fmt.Errorf("grid needs at least one point per axis, got %d x %d", nT, nDPA)
	}
	if dpaMin <= 0 || dpaMax <= 0 {
		return nil, nil, fmt.Errorf("damage rates of a geometric grid must be positive")
	}
	temps := sweep.Linspace(floatOpt(cmd, "t-min", s.TMin), floatOpt(cmd, "t-max", s.TMax), nT)
	return temps, sweep.Geomspace(dpaMin, dpaMax, nDPA), nil
}

// [0, end] 上等间距的 --points 个输出时刻
func outputTimes(cmd *cobra.Command, end float64) ([]float64, error) {
	points, _ := cmd.Flags().GetInt("points")
	if points < 2 {
		return nil, fmt.Errorf("--points must be at least 2, got %d", points)
	}
	return sweep.Linspace(0, end, points), nil
}

func driver(cmd *cobra.Command) *sweep.Driver {
	d := cfg.Driver()
	d.Workers = intOpt(cmd, "workers", d.Workers)
	d.Threshold = floatOpt(cmd, "threshold", d.Threshold)
	d.Logger = log.WithField("cmd", cmd.CommandPath())
	return d
}

func loadMaterial() (*material.Material, error) {
	m, err := cfg.Material()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"material": m.Name, "species": len(m.Species), "thickness": m.Thickness}).Debug("material loaded")
	return m, nil
}

// 按名称取损伤陷阱，名称为空时取第一个
func damagedTrap(m *material.Material, name string) (model.TrapSpecies, error) {
	for _, s := range m.Species {
		if s.Intrinsic() {
			continue
		}
		if name == "" || s.Name == name {
			return s, nil
		}
	}
	return model.TrapSpecies{}, fmt.Errorf("material %s has no damaged trap %q", m.Name, name)
}

// 写到 --output 指定的文件，未指定时写到标准输出
func writeTable(cmd *cobra.Command, t *sweep.Table) error {
	path, _ := cmd.Flags().GetString("output")
	return writeTableTo(cmd.OutOrStdout(), path, t)
}

func writeTableTo(stdout io.Writer, path string, t *sweep.Table) error {
	if path == "" {
		return sweep.WriteCSV(stdout, t)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sweep.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	log.WithFields(log.Fields{"path": path, "rows": len(t.Rows)}).Info("table written")
	return f.Close()
}
