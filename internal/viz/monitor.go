package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/servo"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	canvasWidth     = 40
	canvasHeight    = 20
	historyCapacity = 300
	pollRate        = 30
	handStep        = 0.002
	radiusFactor    = 1.1
)

// Target is the session the monitor watches and drives.
type Target interface {
	Snapshot() servo.Reading
	Sphere() force.Sphere
	Active() (force.Kind, bool)
	LastError() int
	Start(kind force.Kind, sphere force.Sphere) error
	Stop() error
	SetSphereRadius(r float64)
}

// Hand moves the simulated user's grip. Nil on real hardware.
type Hand interface {
	HandTarget() r3.Vec
	SetHandTarget(v r3.Vec)
}

type TickMsg time.Time

// Monitor is the tea.Model of the live view.
type Monitor struct {
	target   Target
	hand     Hand
	theme    Theme
	styles   styles
	canvas   *Canvas
	reading  servo.Reading
	sphere   force.Sphere
	kind     force.Kind
	active   bool
	lastErr  int
	distance []float64
	forces   []float64
	peak     float64
	status   string
	showHelp bool
}

func NewMonitor(target Target, hand Hand, theme string) Monitor {
	t := GetTheme(theme)
	return Monitor{
		target:   target,
		hand:     hand,
		theme:    t,
		styles:   newStyles(t),
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		distance: make([]float64, 0, historyCapacity),
		forces:   make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/pollRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Monitor) Init() tea.Cmd {
	return tick()
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.start(force.Idle)
		case "2":
			m.start(force.ToCenter)
		case "3":
			m.start(force.FrictionlessRepel)
		case "4":
			m.start(force.ConstrainedRepel)
		case "s":
			m.report("stop", m.target.Stop())
		case "+", "=":
			m.target.SetSphereRadius(m.target.Sphere().Radius * radiusFactor)
		case "-", "_":
			m.target.SetSphereRadius(m.target.Sphere().Radius / radiusFactor)
		case "left", "h":
			m.moveHand(r3.Vec{X: -handStep})
		case "right", "l":
			m.moveHand(r3.Vec{X: handStep})
		case "up", "k":
			m.moveHand(r3.Vec{Y: handStep})
		case "down", "j":
			m.moveHand(r3.Vec{Y: -handStep})
		case "u":
			m.moveHand(r3.Vec{Z: handStep})
		case "d":
			m.moveHand(r3.Vec{Z: -handStep})
		case "t":
			m.theme = nextTheme(m.theme)
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
		m.poll()
	case TickMsg:
		m.poll()
		return m, tick()
	}
	return m, nil
}

func (m *Monitor) start(kind force.Kind) {
	m.report("start "+kind.String(), m.target.Start(kind, m.target.Sphere()))
}

func (m *Monitor) report(op string, err error) {
	if err != nil {
		m.status = fmt.Sprintf("%s failed: %v", op, err)
		return
	}
	m.status = op + " ok"
}

func (m *Monitor) moveHand(d r3.Vec) {
	if m.hand == nil {
		return
	}
	m.hand.SetHandTarget(r3.Add(m.hand.HandTarget(), d))
}

// poll copies the session state and extends the histories.
func (m *Monitor) poll() {
	m.reading = m.target.Snapshot()
	m.sphere = m.target.Sphere()
	m.kind, m.active = m.target.Active()
	m.lastErr = m.target.LastError()

	d := r3.Norm(r3.Sub(m.reading.Position, m.sphere.Center))
	f := r3.Norm(m.reading.Force)
	if f > m.peak {
		m.peak = f
	}
	m.distance = appendCapped(m.distance, d)
	m.forces = appendCapped(m.forces, f)
}

func appendCapped(xs []float64, v float64) []float64 {
	if len(xs) == historyCapacity {
		copy(xs, xs[1:])
		xs = xs[:len(xs)-1]
	}
	return append(xs, v)
}

// draw renders the top-down (X/Y) view. The scale fits 1.5 sphere radii,
// or the cursor if it is farther out.
func (m *Monitor) draw() {
	m.canvas.Clear()
	w, h := m.canvas.Width*2, m.canvas.Height*4
	cx, cy := w/2, h/2

	rel := r3.Sub(m.reading.Position, m.sphere.Center)
	extent := math.Max(1.5*math.Abs(m.sphere.Radius), 1.2*math.Hypot(rel.X, rel.Y))
	if extent == 0 {
		extent = 0.1
	}
	scale := float64(min(cx, cy)) / extent

	m.canvas.Line(0, cy, w-1, cy)
	m.canvas.Line(cx, 0, cx, h-1)
	m.canvas.Circle(cx, cy, int(math.Round(math.Abs(m.sphere.Radius)*scale)))

	px := cx + int(math.Round(rel.X*scale))
	py := cy - int(math.Round(rel.Y*scale))
	m.canvas.Dot(px, py)

	if f := m.reading.Force; f != (r3.Vec{}) && m.peak > 0 {
		arrow := float64(min(cx, cy)) / 3 / m.peak
		m.canvas.Line(px, py, px+int(math.Round(f.X*arrow)), py-int(math.Round(f.Y*arrow)))
	}
}

func (m Monitor) View() string {
	m.draw()
	st := m.styles
	r := m.reading

	var s strings.Builder
	model := "none"
	if m.active {
		model = m.kind.String()
	}
	s.WriteString(st.header.Render("TOUCHY · "+strings.ToUpper(model)) + "\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Position", fmtVec(r.Position))
	row("Sphere", fmt.Sprintf("%s r=%.4f", fmtVec(m.sphere.Center), m.sphere.Radius))
	inside := len(m.distance) > 0 && m.distance[len(m.distance)-1] < m.sphere.Radius
	contact := "free"
	if inside {
		contact = st.contact.Render("inside")
	}
	row("Contact", contact)
	fmag := r3.Norm(r.Force)
	row("Force", fmt.Sprintf("%s %.3f N", ForceBar(fmag, m.peak, 12), fmag))
	row("Buttons", fmt.Sprintf("%s %s", button("1", r.Primary), button("2", r.Secondary)))
	row("Frame", fmt.Sprintf("%d", r.Frame))
	if m.hand != nil {
		row("Hand", fmtVec(m.hand.HandTarget()))
	}
	if m.lastErr != 0 {
		row("Last error", st.err.Render(fmt.Sprintf("0x%04x %s", m.lastErr, device.ErrorCode(m.lastErr))))
	} else {
		row("Last error", "none")
	}
	if m.status != "" {
		s.WriteString(st.warning.Render(m.status) + "\n")
	}

	if len(m.distance) > 1 {
		chart := asciigraph.Plot(m.distance,
			asciigraph.Height(5),
			asciigraph.Width(36),
			asciigraph.Precision(4),
			asciigraph.Caption("distance to center"))
		s.WriteString("\n" + st.graph.Render(chart) + "\n")
	}

	s.WriteString(st.help.Render(Separator(36) + "\n1-4:Model S:Stop +/-:Radius Q:Quit\n←↑↓→ U/D:Hand T:Theme ?:Help"))

	layout := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + layout
	}
	return layout
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  1 2 3 4  - idle/center/sphere/con.  ║
║  S        - Stop running model       ║
║  + / -    - Radius x1.1 / /1.1       ║
║  Arrows   - Move hand in X/Y         ║
║  U / D    - Move hand in Z           ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

func fmtVec(v r3.Vec) string {
	return fmt.Sprintf("(%+.4f, %+.4f, %+.4f)", v.X, v.Y, v.Z)
}

func button(name string, down bool) string {
	if down {
		return "[" + name + "]"
	}
	return " " + name + " "
}
