package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/robosim/internal/sim"
	"github.com/san-kum/robosim/internal/urdf"
)

const (
	canvasWidth     = 48
	canvasHeight    = 18
	historyCapacity = 600
	// dots per voxel cell in the side view
	cellPixels = 4
	nudge      = 0.1
	frameRate  = 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Dashboard steps a session on a timer and draws it. The session must not
// be used elsewhere while the program runs.
type Dashboard struct {
	session       *sim.Session
	joints        []string
	stepsPerFrame int

	running  bool
	selected int
	theme    int
	showHelp bool
	resets   int

	last    sim.Frame
	history []sim.Frame
	trail   [][3]float64
	canvas  *Canvas
}

func NewDashboard(s *sim.Session, stepsPerFrame int) *Dashboard {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	return &Dashboard{
		session:       s,
		joints:        s.Joints(),
		stepsPerFrame: stepsPerFrame,
		running:       true,
		history:       make([]sim.Frame, 0, historyCapacity),
		canvas:        NewCanvas(canvasWidth, canvasHeight),
	}
}

func (d *Dashboard) Init() tea.Cmd { return tick() }

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return d, tea.Quit
		case " ":
			d.running = !d.running
		case "r":
			d.reset()
		case "a":
			d.session.Controller().ClearAnchor()
		case "tab":
			d.cycle(1)
		case "shift+tab":
			d.cycle(-1)
		case "up", "k":
			d.adjust(nudge)
		case "down", "j":
			d.adjust(-nudge)
		case "t":
			d.theme = (d.theme + 1) % len(Themes)
		case "?":
			d.showHelp = !d.showHelp
		}
	case TickMsg:
		if d.running {
			d.step()
		}
		return d, tick()
	}
	return d, nil
}

func (d *Dashboard) step() {
	for i := 0; i < d.stepsPerFrame; i++ {
		f := d.session.Tick()
		d.last = f
		d.history = append(d.history, f)
		if len(d.history) > historyCapacity {
			d.history = d.history[1:]
		}
	}
	d.trail = append(d.trail, d.last.Root)
	if len(d.trail) > 60 {
		d.trail = d.trail[1:]
	}
}

func (d *Dashboard) reset() {
	d.session.Reset()
	d.resets++
	d.history = d.history[:0]
	d.trail = d.trail[:0]
}

func (d *Dashboard) cycle(dir int) {
	if len(d.joints) == 0 {
		return
	}
	d.selected = (d.selected + dir + len(d.joints)) % len(d.joints)
}

func (d *Dashboard) adjust(delta float64) {
	if len(d.joints) == 0 {
		return
	}
	name := d.joints[d.selected]
	ctrl := d.session.Controller()
	st, ok := ctrl.JointStates()[name]
	if !ok {
		return
	}
	ctrl.SetTarget(name, st.TargetPosition+delta)
}

// Selected returns the joint the arrow keys act on.
func (d *Dashboard) Selected() string {
	if len(d.joints) == 0 {
		return ""
	}
	return d.joints[d.selected]
}

func (d *Dashboard) Running() bool { return d.running }

func (d *Dashboard) History() []sim.Frame { return d.history }

// drawScene renders a side view in the x-y plane centered on the root:
// the ground profile under the root's z, the root trail and the root.
func (d *Dashboard) drawScene() {
	c := d.canvas
	c.Clear()
	w, h := c.Pixels()
	root := d.last.Root
	world := d.session.World()

	toScreen := func(x, y float64) (int, int) {
		return w/2 + int(math.Round((x-root[0])*cellPixels)),
			h/2 - int(math.Round((y-root[1])*cellPixels))
	}

	z := int(math.Floor(root[2]))
	top := int(math.Ceil(root[1])) + h/cellPixels
	for px := 0; px < w; px++ {
		wx := root[0] + float64(px-w/2)/cellPixels
		if y, ok := world.Surface(int(math.Floor(wx)), z, top); ok {
			_, sy := toScreen(wx, float64(y))
			c.FillBelow(px, sy)
		}
	}

	for i := 1; i < len(d.trail); i++ {
		x0, y0 := toScreen(d.trail[i-1][0], d.trail[i-1][1])
		x1, y1 := toScreen(d.trail[i][0], d.trail[i][1])
		c.DrawLine(x0, y0, x1, y1)
	}

	cx, cy := toScreen(root[0], root[1])
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			c.Set(cx+dx, cy+dy)
		}
	}
}

func (d *Dashboard) View() string {
	st := newStyles(Themes[d.theme])
	ctrl := d.session.Controller()
	desc := ctrl.Description()

	d.drawScene()
	canvasView := st.canvas.Render(st.ground.Render(d.canvas.String()))

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(desc.Name)) + "\n")
	if d.running {
		s.WriteString(st.running.Render("RUNNING"))
	} else {
		s.WriteString(st.paused.Render("PAUSED"))
	}
	s.WriteString("\n\n")

	mode := "kinematic"
	if ctrl.UsingPhysics() {
		mode = "physics (" + d.session.Binding().EngineName() + ")"
	}
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", d.last.Time))
	row("Mode", mode)
	row("Root", fmt.Sprintf("%.2f %.2f %.2f", d.last.Root[0], d.last.Root[1], d.last.Root[2]))
	row("Colliders", fmt.Sprintf("%d", d.last.Colliders))
	row("Anchored", fmt.Sprintf("%t", ctrl.Anchored()))
	row("Resets", fmt.Sprintf("%d", d.resets))

	s.WriteString("\nJOINTS\n")
	states := ctrl.JointStates()
	for i, name := range d.joints {
		js := states[name]
		bar := ""
		if ji, ok := desc.JointIndex(name); ok {
			if j := &desc.Joints[ji]; j.Bounded() {
				bar = st.LimitBar(js.Position, j.Limits.Lower, j.Limits.Upper, 10)
			} else if j.Type == urdf.JointContinuous {
				bar = st.LimitBar(js.Position, -math.Pi, math.Pi, 10)
			}
		}
		line := fmt.Sprintf("%-10s %s %+6.2f → %+6.2f", name, bar, js.Position, js.TargetPosition)
		if i == d.selected {
			s.WriteString(st.selected.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	if len(d.joints) == 0 {
		s.WriteString(st.label.Render("  (none)") + "\n")
	}

	if name := d.Selected(); name != "" && len(d.history) > 1 {
		pos, _, err := JointSeries(d.joints, d.history, name)
		if err == nil && len(pos) > 1 {
			chart := asciigraph.Plot(pos, asciigraph.Height(4), asciigraph.Width(36), asciigraph.Caption(name))
			s.WriteString(st.graph.Render(chart) + "\n")
		}
	}

	s.WriteString(st.help.Render("SP:Pause R:Reset A:Anchor Q:Quit\nTab:Joint ↑↓:Target T:Theme ?:Help"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if d.showHelp {
		return helpText + "\n\n" + body
	}
	return body
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset to spawn           ║
║  A        - Re-anchor on the ground  ║
║  Q        - Quit                     ║
║  Tab      - Next joint               ║
║  Up/K     - Raise joint target       ║
║  Down/J   - Lower joint target       ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`
