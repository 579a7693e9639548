package sweep

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
)

func quietDriver(workers int) *Driver {
	l := log.New()
	l.SetOutput(io.Discard)
	d := New()
	d.Workers = workers
	d.Logger = log.NewEntry(l)
	return d
}

type recorder struct {
	mu   sync.Mutex
	rows []Row
	done []string
}

func (r *recorder) Publish(row Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

func (r *recorder) Done(sweep string, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, sweep)
}

func sixTrap(t *testing.T) *retention.Model {
	t.Helper()
	m, err := material.Preset(material.SchwartzSelinger6Trap)
	if err != nil {
		t.Fatal(err)
	}
	return retention.FromMaterial(m)
}

func TestGrids(t *testing.T) {
	temps := Linspace(400, 1300, 50)
	if len(temps) != 50 || temps[0] != 400 || temps[49] != 1300 {
		t.Errorf("unexpected temperature grid %v", temps)
	}
	want := []float64{1e-3, 1e-2, 1e-1, 1, 10, 100, 1000}
	got := Geomspace(1e-3, 1e3, 7)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12*want[i] {
			t.Errorf("geomspace[%d] = %v want %v", i, got[i], want[i])
		}
	}
	if got := Linspace(3, 5, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("single point grid %v", got)
	}
	if Geomspace(1, 2, 0) != nil {
		t.Errorf("empty grid should be nil")
	}
}

func TestPoints(t *testing.T) {
	points := Points([]float64{400, 500}, []float64{1, 10})
	if len(points) != 4 {
		t.Fatalf("got %d points", len(points))
	}
	// 外层为损伤
	if points[1].Temperature != 500 || math.Abs(points[1].DamageRate.PerFPY()-1) > 1e-12 {
		t.Errorf("unexpected order %+v", points)
	}
	if math.Abs(points[2].DamageRate.PerSecond()-10/model.FPY) > 1e-24 {
		t.Errorf("damage should be stored per second, got %v", points[2].DamageRate)
	}
}

func TestResultPath(t *testing.T) {
	got := ResultPath("results", 10, 761)
	if want := filepath.Join("results", "dpa=1.00e+01", "T=761", DerivedQuantities); got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got := ResultDir("r", 1e-3, 400.4); got != filepath.Join("r", "dpa=1.00e-03", "T=400") {
		t.Errorf("unexpected dir %q", got)
	}
}

func TestExecutorSplitCoversRange(t *testing.T) {
	for _, workers := range []int{1, 3, 4, 16} {
		for _, total := range []int{0, 1, 5, 10, 37} {
			var seen []int
			for _, tk := range newExecutor(workers).split(total) {
				if tk.end <= tk.start {
					t.Errorf("workers=%d total=%d: empty task %+v", workers, total, tk)
				}
				for i := tk.start; i < tk.end; i++ {
					seen = append(seen, i)
				}
			}
			sort.Ints(seen)
			if len(seen) != total {
				t.Errorf("workers=%d total=%d: covered %d indices", workers, total, len(seen))
				continue
			}
			for i, v := range seen {
				if v != i {
					t.Errorf("workers=%d total=%d: index %d covered as %d", workers, total, i, v)
					break
				}
			}
		}
	}
}

func TestAnalyticalOrderedAcrossWorkers(t *testing.T) {
	m := sixTrap(t)
	temps := Linspace(400, 1300, 7)
	dpas := Geomspace(1e-3, 1e3, 5)

	seq, err := quietDriver(1).Analytical(context.Background(), m, temps, dpas)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	d := quietDriver(4)
	d.Publisher = rec
	par, err := d.Analytical(context.Background(), m, temps, dpas)
	if err != nil {
		t.Fatal(err)
	}
	if len(par.Rows) != 35 || len(par.Columns) != 5+2*6 {
		t.Fatalf("unexpected shape %d x %d", len(par.Rows), len(par.Columns))
	}
	for i := range seq.Rows {
		if !floats.Equal(seq.Rows[i], par.Rows[i]) {
			t.Errorf("row %d differs between 1 and 4 workers", i)
		}
	}
	if len(rec.rows) != 35 || len(rec.done) != 1 || rec.done[0] != "analytical" {
		t.Errorf("publisher saw %d rows, done %v", len(rec.rows), rec.done)
	}

	p := model.OperatingPoint{DamageRate: model.DPAPerFPY(dpas[2]), Temperature: temps[3]}
	total, _ := par.Column("retention")
	if want := m.Evaluate(p).Total; total[2*len(temps)+3] != want {
		t.Errorf("retention %v want %v", total[2*len(temps)+3], want)
	}
}

func TestAnalyticalPublishedPoint(t *testing.T) {
	tab, err := quietDriver(1).Analytical(context.Background(), sixTrap(t), []float64{761}, []float64{10})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tab.Column("retention")
	if math.Abs(got[0]-3.65e22)/3.65e22 > 2e-3 {
		t.Errorf("retention %.4e", got[0])
	}
	if _, err := tab.Column("nope"); err == nil {
		t.Errorf("unknown column should fail")
	}
}

func damageTrap() kinetics.Params {
	return kinetics.Params{K: 1.5e28, NMax: 5.2e25, A0: 6.18e-3, EA: 0.28}
}

func TestTrapTransient(t *testing.T) {
	p := damageTrap()
	ts := Linspace(0, 1e6, 1001)
	res, err := quietDriver(2).TrapTransient(context.Background(), p, []float64{600}, []float64{0, 10}, ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Densities) != 2 || len(res.Densities[1]) != len(ts) {
		t.Fatalf("unexpected trajectories")
	}
	// 无损伤时陷阱不产生，也就没有饱和时间
	if row := res.Summary.Rows[0]; row[2] != 0 || !math.IsNaN(row[4]) {
		t.Errorf("undamaged row %v", row)
	}

	row := res.Summary.Rows[1]
	nEnd, nSteady, tSat := row[2], row[3], row[4]
	if math.Abs(nEnd-nSteady)/nSteady > 1e-5 {
		t.Errorf("end density %v should reach steady state %v", nEnd, nSteady)
	}
	phi := model.DPAPerFPY(10).PerSecond()
	want := kinetics.AnalyticalSaturationTime(DefaultThreshold, p.K, p.NMax, phi, p.A0, p.EA, 600)
	if math.Abs(tSat-want) > ts[1]-ts[0] {
		t.Errorf("saturation time %v want about %v", tSat, want)
	}
}

func TestCharacteristicTimes(t *testing.T) {
	p := damageTrap()
	d := quietDriver(1)
	d.Threshold = 0.95
	tab, err := d.CharacteristicTimes(context.Background(), p, []float64{500, 900}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	times, _ := tab.Column("t_characteristic")
	phi := model.DPAPerFPY(1).PerSecond()
	for i, T := range []float64{500, 900} {
		if want := kinetics.AnalyticalSaturationTime(0.95, p.K, p.NMax, phi, p.A0, p.EA, T); times[i] != want {
			t.Errorf("T=%v: %v want %v", T, times[i], want)
		}
	}
	// 高温退火更快，达到稳态更早
	if times[1] >= times[0] {
		t.Errorf("saturation should be faster at high temperature: %v", times)
	}

	// 无损伤时与 TrapTransient 一致，没有饱和时间
	tab, err = d.CharacteristicTimes(context.Background(), p, []float64{500}, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if row := tab.Rows[0]; !math.IsNaN(row[2]) || row[3] != 0 {
		t.Errorf("undamaged row %v", row)
	}
}

func TestTrapTransientNeedsTwoTimes(t *testing.T) {
	p := damageTrap()
	for _, ts := range [][]float64{nil, {0}} {
		if _, err := quietDriver(1).TrapTransient(context.Background(), p, []float64{600}, []float64{1}, ts); !errors.Is(err, ErrTooFewTimes) {
			t.Errorf("ts=%v: expected ErrTooFewTimes, got %v", ts, err)
		}
	}
}

func TestTransientRetention(t *testing.T) {
	m := sixTrap(t)
	d := quietDriver(1)
	temps, dpas := []float64{761}, []float64{10}

	steady, err := d.Analytical(context.Background(), m, temps, dpas)
	if err != nil {
		t.Fatal(err)
	}
	long, err := d.TransientRetention(context.Background(), m, temps, dpas, 1e8)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := steady.Column("retention")
	got, _ := long.Column("retention")
	if math.Abs(got[0]-want[0])/want[0] > 1e-5 {
		t.Errorf("long exposure %v should match steady state %v", got[0], want[0])
	}

	short, err := d.TransientRetention(context.Background(), m, temps, dpas, 60)
	if err != nil {
		t.Fatal(err)
	}
	early, _ := short.Column("retention")
	if early[0] >= want[0] {
		t.Errorf("short exposure %v should retain less than %v", early[0], want[0])
	}
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{}
	d := quietDriver(3)
	d.Publisher = rec
	_, err := d.run(context.Background(), "failing", []string{"x"}, 20, func(i int) ([]float64, error) {
		if i == 7 {
			return nil, boom
		}
		return []float64{float64(i)}, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if len(rec.done) != 0 {
		t.Errorf("failed sweep should not be reported done")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Analytical(ctx, sixTrap(t), []float64{500}, []float64{1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

const derivedCSV = `ts,Total_retention_volume_1,Total_1_volume_1,Total_2_volume_1
0.0,0.0,0.0,0.0
100.0,1.5e20,1.0e20,0.5e20
200.0,2.5e20,1.5e20,1.0e20
`

func TestReadDerived(t *testing.T) {
	dq, err := ReadDerived(strings.NewReader(derivedCSV))
	if err != nil {
		t.Fatal(err)
	}
	if v, err := dq.Final(ColRetention); err != nil || v != 2.5e20 {
		t.Errorf("final retention %v %v", v, err)
	}
	col, err := dq.Column(TrapColumn("2"))
	if err != nil || !floats.Equal(col, []float64{0, 0.5e20, 1e20}) {
		t.Errorf("trap 2 column %v %v", col, err)
	}
	if _, err := dq.Column(TrapColumn("3")); err == nil {
		t.Errorf("missing trap column should fail")
	}

	if _, err := ReadDerived(strings.NewReader("ts,other\n0,1\n")); err == nil {
		t.Errorf("missing retention column should fail")
	}
	if _, err := ReadDerived(strings.NewReader("ts,Total_retention_volume_1\n0,abc\n")); err == nil {
		t.Errorf("non-numeric cell should fail")
	}
}

func TestCollectSkipsMissing(t *testing.T) {
	root := t.TempDir()
	dir := ResultDir(root, 1, 500)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DerivedQuantities), []byte(derivedCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := ResultDir(root, 1, 600)
	if err := os.MkdirAll(broken, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(broken, DerivedQuantities), []byte("ts\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tab, err := quietDriver(2).Collect(context.Background(), root, []float64{500, 600, 700}, []float64{1}, "")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tab.Column(ColRetention)
	if got[0] != 2.5e20 || !math.IsNaN(got[1]) || !math.IsNaN(got[2]) {
		t.Errorf("collected %v", got)
	}

	tab, err = quietDriver(1).Collect(context.Background(), root, []float64{500}, []float64{1}, TrapColumn("1"))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := tab.Column(TrapColumn("1")); got[0] != 1.5e20 {
		t.Errorf("trap column %v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	tab := &Table{Columns: []string{"T", "retention"}, Rows: [][]float64{{400, 1.5e20}, {500, math.NaN()}}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tab); err != nil {
		t.Fatal(err)
	}
	if want := "T,retention\n400,1.5e+20\n500,NaN\n"; buf.String() != want {
		t.Errorf("got %q want %q", buf.String(), want)
	}
}
