// Package config 读取 ini 格式的运行配置，缺失的键取默认值
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/fitter"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/ode"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/sweep"
)

// 默认配置文件路径
const DefaultPath = "conf/config.ini"

type Config struct {
	Log    LogConfig
	Model  ModelConfig
	ODE    ODEConfig
	Fit    FitConfig
	Sweep  SweepConfig
	Server ServerConfig
}

type LogConfig struct {
	Level  string
	Format string // text | json
}

// 数值为 0 时沿用材料自身的值
type ModelConfig struct {
	Preset    string
	File      string // TOML 材料文件，优先于 Preset
	Thickness float64
	Flux      float64
	Range     float64
	D0        float64
	ED        float64
}

type ODEConfig struct {
	RelTol   float64
	AbsTol   float64
	MaxSteps int
}

type FitConfig struct {
	FAtol          float64
	XAtol          float64
	Checkpoint     string // sqlite 文件，空表示只在内存中缓存
	MaxEvaluations int
}

type SweepConfig struct {
	Workers     int
	TMin        float64
	TMax        float64
	NT          int
	DPAMin      float64
	DPAMax      float64
	NDPA        int
	Duration    float64 // s
	ResultsRoot string
	Threshold   float64
}

type ServerConfig struct {
	Addr    string
	History int
}

// 文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Warn("config file not found, using defaults")
		file = ini.Empty()
	} else if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return loadCfg(file), nil
}

func Default() *Config {
	return loadCfg(ini.Empty())
}

func loadCfg(file *ini.File) *Config {
	l := file.Section("log")
	m := file.Section("model")
	o := file.Section("ode")
	f := file.Section("fit")
	s := file.Section("sweep")
	srv := file.Section("server")
	return &Config{
		Log: LogConfig{
			Level:  l.Key("level").MustString("info"),
			Format: l.Key("format").In("text", []string{"text", "json"}),
		},
		Model: ModelConfig{
			Preset:    m.Key("preset").MustString(material.SchwartzSelinger6Trap),
			File:      m.Key("file").String(),
			Thickness: m.Key("thickness").MustFloat64(0),
			Flux:      m.Key("flux").MustFloat64(0),
			Range:     m.Key("range").MustFloat64(0),
			D0:        m.Key("d0").MustFloat64(0),
			ED:        m.Key("ed").MustFloat64(0),
		},
		ODE: ODEConfig{
			RelTol:   o.Key("rtol").MustFloat64(1.49012e-8),
			AbsTol:   o.Key("atol").MustFloat64(1.49012e-8),
			MaxSteps: o.Key("max_steps").MustInt(100000),
		},
		Fit: FitConfig{
			FAtol:          f.Key("fatol").MustFloat64(0),
			XAtol:          f.Key("xatol").MustFloat64(0),
			Checkpoint:     f.Key("checkpoint").String(),
			MaxEvaluations: f.Key("max_evaluations").MustInt(0),
		},
		Sweep: SweepConfig{
			Workers:     s.Key("workers").MustInt(1),
			TMin:        s.Key("t_min").MustFloat64(400),
			TMax:        s.Key("t_max").MustFloat64(1300),
			NT:          s.Key("n_t").MustInt(50),
			DPAMin:      s.Key("dpa_min").MustFloat64(1e-3),
			DPAMax:      s.Key("dpa_max").MustFloat64(1e3),
			NDPA:        s.Key("n_dpa").MustInt(50),
			Duration:    s.Key("duration").MustFloat64(1e5),
			ResultsRoot: s.Key("results_root").MustString("Results/parametric_studies/case_1fpy"),
			Threshold:   s.Key("threshold").MustFloat64(sweep.DefaultThreshold),
		},
		Server: ServerConfig{
			Addr:    srv.Key("addr").MustString(":9000"),
			History: srv.Key("history").MustInt(256),
		},
	}
}

// 设置 logrus 的级别和格式
func (c *Config) SetupLogging() error {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log.SetLevel(level)
	if c.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
	return nil
}

func (c *Config) ODEOptions() *ode.Options {
	return &ode.Options{RelTol: c.ODE.RelTol, AbsTol: c.ODE.AbsTol, MaxSteps: c.ODE.MaxSteps}
}

// 按配置加载材料并覆盖厚度和注入条件
func (c *Config) Material() (*material.Material, error) {
	var (
		m   *material.Material
		err error
	)
	if c.Model.File != "" {
		m, err = material.LoadFile(c.Model.File)
	} else {
		m, err = material.Preset(c.Model.Preset)
	}
	if err != nil {
		return nil, err
	}
	override := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	override(&m.Thickness, c.Model.Thickness)
	override(&m.Implantation.Flux, c.Model.Flux)
	override(&m.Implantation.Range, c.Model.Range)
	override(&m.Implantation.D0, c.Model.D0)
	override(&m.Implantation.ED, c.Model.ED)
	return m, nil
}

func (c *Config) Driver() *sweep.Driver {
	d := sweep.New()
	d.Workers = c.Sweep.Workers
	d.ODE = c.ODEOptions()
	d.Threshold = c.Sweep.Threshold
	return d
}

// 文件为空时只在内存中缓存
func (c *Config) Checkpoint(ctx context.Context, problem string) (fitter.Checkpoint, func() error, error) {
	if c.Fit.Checkpoint == "" {
		return fitter.NewMemoryCheckpoint(), func() error { return nil }, nil
	}
	s := fitter.NewSQLiteCheckpoint(c.Fit.Checkpoint, problem)
	if err := s.Init(ctx); err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
