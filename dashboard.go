// dashboard.go
package main

import (
	"fmt"
	"math"
	"time"

	"chaosguard/qhash"

	"github.com/gdamore/tcell/v2"
)

// statsSource is what the dashboard polls.
type statsSource interface {
	GetStatistics() qhash.Statistics
	RecentPatterns(limit int) []string
	State() qhash.StateInfo
	Rotate() uint64
}

// dashboard renders live engine statistics, the latest digests and a
// Lorenz attractor reseeded on every rotation.
type dashboard struct {
	src                    statsSource
	attractor              []qhash.Point3D
	rotation               uint64
	seeded                 bool
	angleX, angleY, angleZ float64
	autoRotate             bool
	frame                  int
}

func newDashboard(src statsSource) *dashboard {
	return &dashboard{src: src, autoRotate: true}
}

func (d *dashboard) reseed(st qhash.StateInfo) {
	if d.seeded && st.Rotation == d.rotation {
		return
	}
	d.attractor = qhash.Trajectory(st.QuantumState, qhash.ClassicLorenz, 1500)
	d.rotation = st.Rotation
	d.seeded = true
}

func (d *dashboard) update() {
	if d.autoRotate {
		d.angleX += 0.008
		d.angleY += 0.012
		d.angleZ += 0.006
	}
	d.frame++
}

func (d *dashboard) render(s tcell.Screen) {
	s.Clear()
	w, h := s.Size()
	if w <= 20 || h <= 8 {
		return
	}

	st := d.src.State()
	d.reseed(st)
	stats := d.src.GetStatistics()

	white := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	gray := tcell.StyleDefault.Foreground(tcell.ColorDarkGray)

	drawText(s, 1, 0, white, "QHASH engine | Arrows:spin A:auto R:rotate Q:quit")
	drawText(s, 1, 2, white, fmt.Sprintf("state: %-9s workers: %d  layers: %d  rotation: %d",
		stats.State, stats.Workers, st.LayerCount, stats.Rotations))
	drawText(s, 1, 3, white, fmt.Sprintf("generated: %d  rate: %.0f/s  peak: %.0f/s",
		stats.TotalGenerated, stats.RatePerSecond, stats.PeakRate))
	drawText(s, 1, 4, white, fmt.Sprintf("hits: %d  misses: %d  hit rate: %.2f%%  cache: %d/%d",
		stats.Hits, stats.Misses, stats.HitRate*100, stats.CacheSize, stats.CacheCapacity))

	// Recent digests on the left half
	half := w / 2
	rows := h - 7
	recent := d.src.RecentPatterns(rows)
	for i, p := range recent {
		if len(p) > half-2 {
			p = p[:half-2]
		}
		drawText(s, 1, 6+i, gray, p)
	}

	// Attractor on the right half
	aw := w - half
	scale := math.Min(float64(aw)/60.0, float64(rows)/30.0) * 1.4
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	rotated := make([]qhash.Point3D, len(d.attractor))
	for i, p := range d.attractor {
		rotated[i] = p.Rotate(d.angleX, d.angleY, d.angleZ)
		minZ = math.Min(minZ, rotated[i].Z)
		maxZ = math.Max(maxZ, rotated[i].Z)
	}
	depthRange := maxZ - minZ
	if depthRange == 0 {
		depthRange = 1
	}
	for i, p := range rotated {
		x, y := p.Project(scale, aw, rows)
		if x < 0 || x >= aw || y < 0 || y >= rows {
			continue
		}
		depth := (p.Z - minZ) / depthRange
		color := depthColor(float64(i)/float64(len(rotated)), depth)
		s.SetContent(half+x, 6+y, depthChar(depth), nil, tcell.StyleDefault.Foreground(color))
	}

	drawText(s, 1, h-1, gray, fmt.Sprintf("frame %d | recent %d", d.frame, len(recent)))
}

var depthChars = []rune{'.', ':', '-', '=', '+', '*', 'o', 'O', '0', '8', '#', '@'}

func depthChar(depth float64) rune {
	depth = math.Max(0, math.Min(1, depth))
	return depthChars[int(depth*float64(len(depthChars)-1))]
}

// depthColor blends purple -> orange -> green along t and darkens with depth.
func depthColor(t, depth float64) tcell.Color {
	t = math.Max(0, math.Min(1, t))
	depth = math.Max(0, math.Min(1, depth))

	r1, g1, b1 := 120.0, 80.0, 255.0
	r2, g2, b2 := 255.0, 150.0, 50.0
	r3, g3, b3 := 50.0, 255.0, 120.0

	var r, g, b float64
	if t < 0.5 {
		k := t * 2
		r, g, b = r1+k*(r2-r1), g1+k*(g2-g1), b1+k*(b2-b1)
	} else {
		k := (t - 0.5) * 2
		r, g, b = r2+k*(r3-r2), g2+k*(g3-g2), b2+k*(b3-b2)
	}

	f := 0.2 + 0.8*depth
	return tcell.NewRGBColor(int32(r*f), int32(g*f), int32(b*f))
}

func runDashboard(src statsSource) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen init failed: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("screen start failed: %w", err)
	}
	defer s.Fini()

	d := newDashboard(src)
	keys := make(chan *tcell.EventKey, 8)
	quit := make(chan struct{})

	// Input handler; key handling happens on the render loop
	go func() {
		defer close(quit)
		for {
			ev := s.PollEvent()
			switch ev := ev.(type) {
			case nil:
				return
			case *tcell.EventKey:
				select {
				case keys <- ev:
				default:
				}
			case *tcell.EventResize:
				s.Sync()
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return nil
		case ev := <-keys:
			if d.handleKey(ev) {
				return nil
			}
		case <-ticker.C:
			d.update()
			d.render(s)
			s.Show()
		}
	}
}

// handleKey applies one key press and reports whether to quit.
func (d *dashboard) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		d.angleX -= 0.15
	case tcell.KeyDown:
		d.angleX += 0.15
	case tcell.KeyLeft:
		d.angleY -= 0.15
	case tcell.KeyRight:
		d.angleY += 0.15
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return true
		case 'a', 'A', ' ':
			d.autoRotate = !d.autoRotate
		case 'r', 'R':
			d.src.Rotate()
		}
	}
	return false
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, str string) {
	for i, r := range str {
		s.SetContent(x+i, y, r, nil, style)
	}
}
