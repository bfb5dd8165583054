package data

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/world"
)

// ErrBadLayout is returned for layouts that are well-formed YAML but
// describe an impossible world.
var ErrBadLayout = errors.New("bad layout")

// Area is a tile rectangle in layout files.
type Area struct {
	Col int `yaml:"col"`
	Row int `yaml:"row"`
	W   int `yaml:"w"`
	H   int `yaml:"h"`
}

func (a Area) TileRect() geom.TileRect {
	w, h := a.W, a.H
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return geom.TileRect{Col: a.Col, Row: a.Row, W: w, H: h}
}

type BuildingDef struct {
	Name string `yaml:"name"`
	Area `yaml:",inline"`
	Open bool `yaml:"open"` // walkable footprint (furniture, floor markings)
	Door bool `yaml:"door"`
}

type RoadDef struct {
	Class string `yaml:"class"`
	Area  `yaml:",inline"`
}

type ResourceDef struct {
	Name string `yaml:"name"`
	Area `yaml:",inline"`
	Open bool `yaml:"open"`
}

type TerrainDef struct {
	Cost float64 `yaml:"cost"`
	Area `yaml:",inline"`
}

// Layout is the initial world: size plus every structure, road, resource
// and terrain patch placed at game start.
type Layout struct {
	Name      string        `yaml:"name"`
	Cols      int           `yaml:"cols"`
	Rows      int           `yaml:"rows"`
	TileSize  float64       `yaml:"tile_size"`
	Map       string        `yaml:"map"` // ASCII map, relative to the layout file
	Buildings []BuildingDef `yaml:"buildings"`
	Roads     []RoadDef     `yaml:"roads"`
	Resources []ResourceDef `yaml:"resources"`
	Terrain   []TerrainDef  `yaml:"terrain"`
	Rock      []Area        `yaml:"rock"`
}

// LoadLayout reads a world layout YAML. Entries of the referenced ASCII map
// come first, explicit lists are appended after them.
func LoadLayout(path string) (*Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}

	if l.Map != "" {
		mapPath := l.Map
		if !filepath.IsAbs(mapPath) {
			mapPath = filepath.Join(filepath.Dir(path), mapPath)
		}
		f, err := os.Open(mapPath)
		if err != nil {
			return nil, fmt.Errorf("open ascii map %s: %w", mapPath, err)
		}
		defer f.Close()
		m, err := ParseASCII(f)
		if err != nil {
			return nil, fmt.Errorf("ascii map %s: %w", mapPath, err)
		}
		if err := l.merge(m); err != nil {
			return nil, fmt.Errorf("layout %s: %w", path, err)
		}
	}

	if l.TileSize == 0 {
		l.TileSize = 1
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return &l, nil
}

func (l *Layout) merge(m *Layout) error {
	if l.Cols == 0 && l.Rows == 0 {
		l.Cols, l.Rows = m.Cols, m.Rows
	} else if l.Cols != m.Cols || l.Rows != m.Rows {
		return fmt.Errorf("%w: map is %dx%d, layout says %dx%d", ErrBadLayout, m.Cols, m.Rows, l.Cols, l.Rows)
	}
	l.Buildings = append(m.Buildings, l.Buildings...)
	l.Roads = append(m.Roads, l.Roads...)
	l.Resources = append(m.Resources, l.Resources...)
	l.Terrain = append(m.Terrain, l.Terrain...)
	l.Rock = append(m.Rock, l.Rock...)
	return nil
}

// Validate checks sizes and road class names.
func (l *Layout) Validate() error {
	if l.Cols <= 0 || l.Rows <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrBadLayout, l.Cols, l.Rows)
	}
	if l.TileSize <= 0 {
		return fmt.Errorf("%w: tile size %v", ErrBadLayout, l.TileSize)
	}
	for i, r := range l.Roads {
		if _, ok := grid.ParseRoadClass(r.Class); !ok {
			return fmt.Errorf("%w: road %d has unknown class %q", ErrBadLayout, i, r.Class)
		}
	}
	for i, t := range l.Terrain {
		if t.Cost <= 0 {
			return fmt.Errorf("%w: terrain %d has cost %v", ErrBadLayout, i, t.Cost)
		}
	}
	return nil
}

// NewState creates an empty world of the layout's size.
func (l *Layout) NewState() *world.State {
	return world.NewState(l.Cols, l.Rows, l.TileSize)
}

// Apply populates s. The state must have the layout's size.
func (l *Layout) Apply(s *world.State) error {
	if s.Cols() != l.Cols || s.Rows() != l.Rows {
		return fmt.Errorf("%w: state is %dx%d, layout is %dx%d", ErrBadLayout, s.Cols(), s.Rows(), l.Cols, l.Rows)
	}
	for _, t := range l.Terrain {
		s.SetTerrainCost(t.TileRect(), t.Cost)
	}
	for _, r := range l.Roads {
		class, _ := grid.ParseRoadClass(r.Class)
		s.PaintRoad(r.TileRect(), class)
	}
	for _, a := range l.Rock {
		tr := a.TileRect()
		for row := tr.Row; row < tr.MaxRow(); row++ {
			for col := tr.Col; col < tr.MaxCol(); col++ {
				s.SetRock(col, row, true)
			}
		}
	}
	for _, b := range l.Buildings {
		s.AddStructure(world.KindBuilding, b.Name, b.TileRect(), !b.Open, b.Door)
	}
	for _, r := range l.Resources {
		s.AddStructure(world.KindResource, r.Name, r.TileRect(), !r.Open, false)
	}
	return nil
}
