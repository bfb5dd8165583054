package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/world"
)

const village = `
; two rooms joined by a door
##########
#....#...#
#....D...#
#....#...#
######=###
..T..R=~..
`

func TestParseASCII(t *testing.T) {
	l, err := ParseASCII(strings.NewReader(village))
	require.NoError(t, err)
	assert.Equal(t, 10, l.Cols)
	assert.Equal(t, 6, l.Rows)

	// top row is a single merged wall run
	require.NotEmpty(t, l.Buildings)
	assert.Equal(t, Area{Col: 0, Row: 0, W: 10, H: 1}, l.Buildings[0].Area)

	var doors int
	for _, b := range l.Buildings {
		if b.Door {
			doors++
			assert.Equal(t, Area{Col: 5, Row: 2, W: 1, H: 1}, b.Area)
		}
	}
	assert.Equal(t, 1, doors)

	require.Len(t, l.Roads, 2)
	assert.Equal(t, "paved", l.Roads[0].Class)
	require.Len(t, l.Resources, 1)
	assert.Equal(t, Area{Col: 2, Row: 5, W: 1, H: 1}, l.Resources[0].Area)
	assert.Equal(t, []Area{{Col: 5, Row: 5, W: 1, H: 1}}, l.Rock)
	require.Len(t, l.Terrain, 1)
	assert.Equal(t, MudCost, l.Terrain[0].Cost)
}

func TestParseASCIIErrors(t *testing.T) {
	_, err := ParseASCII(strings.NewReader("\n; nothing\n"))
	assert.ErrorIs(t, err, ErrBadLayout)

	_, err = ParseASCII(strings.NewReader("...\n..\n"))
	assert.ErrorIs(t, err, ErrBadLayout)

	_, err = ParseASCII(strings.NewReader("..?\n"))
	assert.ErrorIs(t, err, ErrBadLayout)
}

func TestApplyStampsGrid(t *testing.T) {
	l, err := ParseASCII(strings.NewReader(village))
	require.NoError(t, err)
	s := l.NewState()
	require.NoError(t, l.Apply(s))

	g := grid.New(l.Cols, l.Rows, l.TileSize, 4)
	g.RebuildAll(s)
	assert.True(t, g.Solid(g.Index(0, 0)))
	assert.True(t, g.Door(g.Index(5, 2)))
	assert.False(t, g.Solid(g.Index(5, 2)))
	assert.Equal(t, grid.RoadPaved, g.Road(g.Index(6, 4)))
	assert.True(t, g.Solid(g.Index(2, 5)), "tree")
	assert.True(t, g.Solid(g.Index(5, 5)), "rock")
	assert.InDelta(t, MudCost, g.Cost(g.Index(7, 5)), 1e-9)

	assert.ErrorIs(t, l.Apply(world.NewState(3, 3, 1)), ErrBadLayout)
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "village.txt"), []byte(village), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "village.yaml"), []byte(`
name: village
tile_size: 2
map: village.txt
buildings:
  - name: workshop
    col: 1
    row: 1
    w: 2
    h: 2
roads:
  - class: dirt
    col: 0
    row: 5
    w: 2
`), 0o644))

	l, err := LoadLayout(filepath.Join(dir, "village.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "village", l.Name)
	assert.Equal(t, 10, l.Cols)
	assert.Equal(t, 2.0, l.TileSize)
	last := l.Buildings[len(l.Buildings)-1]
	assert.Equal(t, "workshop", last.Name)
	assert.False(t, last.Open)
	assert.Equal(t, "dirt", l.Roads[len(l.Roads)-1].Class)
	assert.Equal(t, 1, l.Roads[len(l.Roads)-1].TileRect().H, "zero height means one tile")
}

func TestLoadLayoutErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	_, err := LoadLayout(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadLayout(write("size.yaml", "cols: 0\nrows: 4\n"))
	assert.ErrorIs(t, err, ErrBadLayout)

	_, err = LoadLayout(write("road.yaml", "cols: 4\nrows: 4\nroads:\n  - class: lava\n"))
	assert.ErrorIs(t, err, ErrBadLayout)

	write("small.txt", "....\n....\n")
	_, err = LoadLayout(write("mismatch.yaml", "cols: 8\nrows: 8\nmap: small.txt\n"))
	assert.ErrorIs(t, err, ErrBadLayout)
}

func TestShippedWorld(t *testing.T) {
	l, err := LoadLayout("../../data/worlds/hamlet.yaml")
	require.NoError(t, err)
	assert.Equal(t, 64, l.Cols)
	assert.Equal(t, 32, l.Rows)

	s := l.NewState()
	require.NoError(t, l.Apply(s))
	buildings, resources := s.StructureCount()
	assert.Greater(t, buildings, 4)
	assert.Greater(t, resources, 10)
	assert.True(t, s.Rock(52, 24))
	assert.Equal(t, grid.RoadDirt, s.RoadAt(30, 18))
}
