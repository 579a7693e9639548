package material

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// 从 TOML 文件读取参数，未给出的厚度和注入参数取默认值
func LoadFile(path string) (*Material, error) {
	m := defaults()
	md, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("material: decode %s: %w", path, err)
	}
	return finish(m, md)
}

func Decode(r io.Reader) (*Material, error) {
	m := defaults()
	md, err := toml.NewDecoder(r).Decode(m)
	if err != nil {
		return nil, fmt.Errorf("material: decode: %w", err)
	}
	return finish(m, md)
}

func defaults() *Material {
	return &Material{
		Name:         "custom",
		Thickness:    Thickness,
		Implantation: DefaultImplantation(),
	}
}

func finish(m *Material, md toml.MetaData) (*Material, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("material: unknown keys %v", undecoded)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Material) Validate() error {
	if len(m.Species) == 0 {
		return fmt.Errorf("material %s: no trap species", m.Name)
	}
	if m.Thickness <= 0 {
		return fmt.Errorf("material %s: thickness must be positive, got %g", m.Name, m.Thickness)
	}
	for i, s := range m.Species {
		if s.MaxDensity < 0 {
			return fmt.Errorf("material %s: species %d (%s) has negative max density %g", m.Name, i, s.Name, s.MaxDensity)
		}
		if s.CreationFactor < 0 {
			return fmt.Errorf("material %s: species %d (%s) has negative creation factor %g", m.Name, i, s.Name, s.CreationFactor)
		}
	}
	return nil
}
