// Package radar implements the fixed-size occupancy grid (component C3):
// per-cell echo/empty/contact timestamps with TTL-style persistence, decay
// and classification, pruned by Clean once timestamps age past their
// persistence window.
package radar

import (
	"sync"
	"time"

	"wheelly/internal/clock"
	"wheelly/internal/geom"
)

// Cell is the occupancy state of a single grid square.
type Cell struct {
	EchoTs    clock.Time
	EmptyTs   clock.Time
	ContactTs clock.Time
}

// CellState is the derived classification of a Cell at a point in time.
type CellState int

const (
	Unknown CellState = iota
	Empty
	Hindered
	Contact
)

func (s CellState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Hindered:
		return "hindered"
	case Contact:
		return "contact"
	default:
		return "unknown"
	}
}

// classify derives the cell's state at time now given the configured
// persistence windows, applying the tie rule contact > hindered > empty
// when timestamps coincide.
func (c Cell) classify(now clock.Time, echoPersistence, contactPersistence time.Duration) CellState {
	// A timestamp later than now has not happened yet from this query's
	// perspective and must not influence the result.
	contactAlive := c.ContactTs.Set() && !c.ContactTs.After(now) && now.Sub(c.ContactTs) <= contactPersistence
	hinderedAlive := c.EchoTs.Set() && !c.EchoTs.After(now) && now.Sub(c.EchoTs) <= echoPersistence
	emptyAlive := c.EmptyTs.Set() && !c.EmptyTs.After(now) && now.Sub(c.EmptyTs) <= echoPersistence && c.EmptyTs > c.EchoTs

	if contactAlive && (!hinderedAlive || c.ContactTs >= c.EchoTs) && (!emptyAlive || c.ContactTs >= c.EmptyTs) {
		return Contact
	}
	if hinderedAlive && !emptyAlive {
		return Hindered
	}
	if emptyAlive {
		return Empty
	}
	return Unknown
}

// Config parameters for a Grid, immutable after construction.
type Config struct {
	Width              int
	Height             int
	CellSize           float64
	Origin             geom.Point
	EchoPersistence    time.Duration
	ContactPersistence time.Duration
	CleanInterval      time.Duration
}

// Grid is the rectangular, world-fixed occupancy map. The grid itself is
// never translated when the robot moves: decay and re-observation handle
// the moving window.
type Grid struct {
	cfg Config

	mu        sync.Mutex
	cells     []Cell
	lastClean clock.Time
}

// NewGrid constructs a Grid of cfg.Width x cfg.Height cells, all unknown.
func NewGrid(cfg Config) *Grid {
	if cfg.Width <= 0 {
		cfg.Width = 1
	}
	if cfg.Height <= 0 {
		cfg.Height = 1
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = 0.1
	}
	g := &Grid{
		cfg:       cfg,
		cells:     make([]Cell, cfg.Width*cfg.Height),
		lastClean: clock.Never,
	}
	for i := range g.cells {
		g.cells[i] = Cell{EchoTs: clock.Never, EmptyTs: clock.Never, ContactTs: clock.Never}
	}
	return g
}

// CellOf returns the integer grid offset containing point p.
func (g *Grid) CellOf(p geom.Point) (int, int) {
	half := g.extent()
	i := int(((p.X - g.cfg.Origin.X) + half.X) / g.cfg.CellSize)
	j := int(((p.Y - g.cfg.Origin.Y) + half.Y) / g.cfg.CellSize)
	return i, j
}

// Center returns the world point at the centre of cell (i,j).
func (g *Grid) Center(i, j int) geom.Point {
	half := g.extent()
	return geom.Point{
		X: g.cfg.Origin.X - half.X + (float64(i)+0.5)*g.cfg.CellSize,
		Y: g.cfg.Origin.Y - half.Y + (float64(j)+0.5)*g.cfg.CellSize,
	}
}

func (g *Grid) extent() geom.Point {
	return geom.Point{
		X: float64(g.cfg.Width) * g.cfg.CellSize / 2,
		Y: float64(g.cfg.Height) * g.cfg.CellSize / 2,
	}
}

func (g *Grid) inBounds(i, j int) bool {
	return i >= 0 && i < g.cfg.Width && j >= 0 && j < g.cfg.Height
}

func (g *Grid) index(i, j int) int { return j*g.cfg.Width + i }

// StateOf reports the classification of cell (i,j) at time now.
func (g *Grid) StateOf(i, j int, now clock.Time) CellState {
	if g == nil || !g.inBounds(i, j) {
		return Unknown
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cells[g.index(i, j)].classify(now, g.cfg.EchoPersistence, g.cfg.ContactPersistence)
}

// CellRef is one entry yielded by CellsWithin.
type CellRef struct {
	I, J     int
	Center   geom.Point
	Distance float64
}

// CellsWithin returns every cell whose centre lies within [rMin, rMax] of
// centre, in the bounding box around it, materialised as a slice since the
// grid is small enough that an eager collection costs nothing per step.
func (g *Grid) CellsWithin(centre geom.Point, rMin, rMax float64) []CellRef {
	if g == nil || rMax <= 0 {
		return nil
	}
	iMin, jMin := g.CellOf(geom.Point{X: centre.X - rMax, Y: centre.Y - rMax})
	iMax, jMax := g.CellOf(geom.Point{X: centre.X + rMax, Y: centre.Y + rMax})
	var refs []CellRef
	for i := iMin; i <= iMax; i++ {
		for j := jMin; j <= jMax; j++ {
			if !g.inBounds(i, j) {
				continue
			}
			c := g.Center(i, j)
			d := c.Distance(centre)
			if d >= rMin && d <= rMax {
				refs = append(refs, CellRef{I: i, J: j, Center: c, Distance: d})
			}
		}
	}
	return refs
}

// Dimensions returns the grid's width and height in cells.
func (g *Grid) Dimensions() (int, int) { return g.cfg.Width, g.cfg.Height }

// CellSize returns the configured cell edge length in metres.
func (g *Grid) CellSize() float64 { return g.cfg.CellSize }
