package data

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/l1jgo/navcore/internal/grid"
)

// ASCII tile symbols.
const (
	symOpen  = '.'
	symWall  = '#'
	symDoor  = 'D'
	symPaved = '='
	symDirt  = '-'
	symStone = ':'
	symFloor = '_'
	symTree  = 'T'
	symRock  = 'R'
	symMud   = '~'
)

// MudCost is the terrain cost stamped for '~' tiles.
const MudCost = 4.0

var symRoads = map[byte]grid.RoadClass{
	symPaved: grid.RoadPaved,
	symDirt:  grid.RoadDirt,
	symStone: grid.RoadStone,
	symFloor: grid.RoadFloor,
}

// ParseASCII reads a rectangular character map into a layout. Horizontal
// runs of walls and doors become one building each, every road symbol a
// one-tile road entry. Blank lines and lines starting with ';' are skipped.
// All remaining lines must have the same width.
func ParseASCII(r io.Reader) (*Layout, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if len(line) == 0 || line[0] == ';' {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ascii map: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty ascii map", ErrBadLayout)
	}

	cols := len(lines[0])
	l := &Layout{Cols: cols, Rows: len(lines), TileSize: 1}
	for row, line := range lines {
		if len(line) != cols {
			return nil, fmt.Errorf("%w: ascii row %d has width %d, want %d", ErrBadLayout, row, len(line), cols)
		}
		for col := 0; col < cols; {
			ch := line[col]
			switch ch {
			case symWall, symDoor:
				end := col + 1
				for end < cols && line[end] == ch {
					end++
				}
				b := BuildingDef{Name: "wall", Area: Area{Col: col, Row: row, W: end - col, H: 1}}
				if ch == symDoor {
					b.Name = "door"
					b.Door = true
				}
				l.Buildings = append(l.Buildings, b)
				col = end
				continue
			case symPaved, symDirt, symStone, symFloor:
				l.Roads = append(l.Roads, RoadDef{Class: symRoads[ch].String(), Area: tile(col, row)})
			case symTree:
				l.Resources = append(l.Resources, ResourceDef{Name: "tree", Area: tile(col, row)})
			case symRock:
				l.Rock = append(l.Rock, tile(col, row))
			case symMud:
				l.Terrain = append(l.Terrain, TerrainDef{Cost: MudCost, Area: tile(col, row)})
			case symOpen:
			default:
				return nil, fmt.Errorf("%w: unknown symbol %q at %d,%d", ErrBadLayout, ch, col, row)
			}
			col++
		}
	}
	return l, nil
}

func tile(col, row int) Area { return Area{Col: col, Row: row, W: 1, H: 1} }
