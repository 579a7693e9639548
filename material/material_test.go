package material

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestPresets(t *testing.T) {
	want := map[string]int{
		Analytical5Trap:       5,
		SchwartzSelinger6Trap: 6,
		Festim6Trap:           6,
		Frauenfelder2Trap:     2,
	}
	for _, name := range Names() {
		m, err := Preset(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Species) != want[name] {
			t.Errorf("%s: %d species, want %d", name, len(m.Species), want[name])
		}
		if err := m.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := Preset("nope"); err == nil {
		t.Errorf("unknown preset should fail")
	}
}

func TestFestimTrappingPrefactor(t *testing.T) {
	if k0 := festimTrappingPrefactor(); math.Abs(k0-8.964e-17)/8.964e-17 > 1e-3 {
		t.Errorf("unexpected trapping prefactor %v", k0)
	}
}

func TestLoadFile(t *testing.T) {
	m, err := LoadFile(filepath.Join("testdata", "two_traps.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "two_traps" || m.Thickness != 0.001 || m.Implantation.Flux != 5e19 {
		t.Errorf("unexpected material %+v", m)
	}
	if len(m.Species) != 2 || !m.Species[0].Intrinsic() || m.Species[1].Intrinsic() {
		t.Errorf("unexpected species %+v", m.Species)
	}
	if m.Species[1].CreationFactor != 1.5e28 || m.Species[1].AnnealingEnergy != 0.28 {
		t.Errorf("damage trap not decoded: %+v", m.Species[1])
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "name = \"x\"\ncolour = \"red\"\n[[species]]\nmax_density = 1.0\n",
		"no species":       "name = \"x\"\n",
		"negative density": "[[species]]\nmax_density = -1.0\n",
	}
	for name, doc := range cases {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	m, err := Decode(strings.NewReader("[[species]]\nmax_density = 1.0e22\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Thickness != Thickness || m.Implantation.D0 != D0 {
		t.Errorf("defaults not applied: %+v", m)
	}
}
