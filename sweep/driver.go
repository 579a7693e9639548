package sweep

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/ode"
)

// 默认饱和阈值
const DefaultThreshold = 0.99

// 一个工况点的结果
type Row struct {
	Sweep   string    `json:"sweep"`
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// 接收每一行结果，server 用它把进度推送给前端
type Publisher interface {
	Publish(r Row)
	Done(sweep string, rows int)
}

type Driver struct {
	// 为 1 时按顺序计算
	Workers   int
	Publisher Publisher
	Logger    *log.Entry
	ODE       *ode.Options
	Threshold float64
}

func New() *Driver {
	return &Driver{
		Workers:   1,
		Logger:    log.NewEntry(log.StandardLogger()),
		Threshold: DefaultThreshold,
	}
}

func (d *Driver) logger() *log.Entry {
	if d.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return d.Logger
}

func (d *Driver) threshold() float64 {
	if d.Threshold <= 0 {
		return DefaultThreshold
	}
	return d.Threshold
}

// 计算 total 行，结果按下标排列，与并发数无关
func (d *Driver) run(ctx context.Context, name string, columns []string, total int,
	row func(i int) ([]float64, error)) (*Table, error) {
	logger := d.logger().WithFields(log.Fields{"sweep": name, "points": total, "workers": d.Workers})
	logger.Info("sweep started")
	start := time.Now()

	t := NewTable(columns, total)
	var mu sync.Mutex
	done := 0
	err := newExecutor(d.Workers).run(ctx, total, func(i int) error {
		values, err := row(i)
		if err != nil {
			return err
		}
		t.Rows[i] = values

		mu.Lock()
		defer mu.Unlock()
		done++
		logger.WithFields(log.Fields{"i": i, "done": done}).Debug("point finished")
		if d.Publisher != nil {
			d.Publisher.Publish(Row{Sweep: name, Index: i, Total: total, Columns: columns, Values: values})
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("sweep aborted")
		return nil, err
	}
	if d.Publisher != nil {
		d.Publisher.Done(name, total)
	}
	logger.WithField("elapsed", time.Since(start)).Info("sweep finished")
	return t, nil
}
