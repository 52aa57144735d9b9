// Package views renders the read models of the four dashboard views from the
// shared session state.
package views

import (
	"fmt"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/services/analysis"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
)

// ConsoleBanner is printed above the alert lines of the console view.
var ConsoleBanner = []string{
	"Aegis Security System v4.2.0 (Stable)",
	"Initializing kernel modules... [OK]",
	"Scanning network interfaces (eth0, eth1)... [OK]",
	"Establishing AI cognitive link... [OK]",
	"--------------------------------------------------",
	"root@aegis-defense:~$ tail -f /var/log/ids/alerts.log",
}

// SeverityShare is one bar of the overview distribution.
type SeverityShare struct {
	Severity domain.Severity `json:"severity"`
	Count    int             `json:"count"`
	Percent  float64         `json:"percent"`
}

type OverviewModel struct {
	Throughput   int                     `json:"throughput"`
	Threats      int                     `json:"threats"`
	Series       []domain.AggregatePoint `json:"series"`
	Distribution []SeverityShare         `json:"distribution"`
}

type LiveFeedModel struct {
	Events []domain.NetworkEvent `json:"events"`
	// Initializing is set while no event has been generated yet.
	Initializing bool `json:"initializing"`
}

type ConsoleModel struct {
	Lines []string `json:"lines"`
}

// Page is a rendered view. Exactly one model field is set.
type Page struct {
	View       domain.View             `json:"view"`
	Title      string                  `json:"title"`
	Navigation []domain.NavigationItem `json:"navigation"`
	Overview   *OverviewModel          `json:"overview,omitempty"`
	LiveFeed   *LiveFeedModel          `json:"liveFeed,omitempty"`
	Analyzer   *analysis.Snapshot      `json:"analyzer,omitempty"`
	Console    *ConsoleModel           `json:"console,omitempty"`
}

// Presenter renders pages from the session state and the analyzer workbench.
type Presenter struct {
	state     *session.State
	workbench *analysis.Workbench
}

func NewPresenter(state *session.State, workbench *analysis.Workbench) *Presenter {
	return &Presenter{state: state, workbench: workbench}
}

// Active renders whichever view is currently selected.
func (p *Presenter) Active() Page {
	page, _ := p.Render(p.state.ActiveView())
	return page
}

// Render renders view v. Unknown views return domain.ErrUnknownView.
func (p *Presenter) Render(v domain.View) (Page, error) {
	v, err := domain.ParseView(string(v))
	if err != nil {
		return Page{}, err
	}

	page := Page{
		View:       v,
		Title:      title(v),
		Navigation: domain.Navigation(),
	}

	switch v {
	case domain.ViewOverview:
		m := Overview(p.state.Snapshot())
		page.Overview = &m
	case domain.ViewLiveFeed:
		m := LiveFeed(p.state.Events())
		page.LiveFeed = &m
	case domain.ViewAnalyzer:
		snap := p.workbench.Snapshot()
		page.Analyzer = &snap
	case domain.ViewConsole:
		m := Console(p.state.Events())
		page.Console = &m
	}
	return page, nil
}

func title(v domain.View) string {
	for _, item := range domain.Navigation() {
		if item.ID == v {
			return item.Name
		}
	}
	return string(v)
}

// Overview computes the overview model. Throughput and threats come from the
// newest point; the distribution counts severities over the event ring.
func Overview(snap session.Snapshot) OverviewModel {
	m := OverviewModel{
		Series:       snap.Points,
		Distribution: Distribution(snap.Events),
	}
	if m.Series == nil {
		m.Series = []domain.AggregatePoint{}
	}
	if n := len(snap.Points); n > 0 {
		last := snap.Points[n-1]
		m.Throughput = last.Packets
		m.Threats = last.Threats
	}
	return m
}

// Distribution returns one share per severity, most severe first.
func Distribution(events []domain.NetworkEvent) []SeverityShare {
	counts := make(map[domain.Severity]int, len(domain.Severities()))
	for _, e := range events {
		counts[e.Severity]++
	}

	levels := domain.Severities()
	shares := make([]SeverityShare, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		sev := levels[i]
		share := SeverityShare{Severity: sev, Count: counts[sev]}
		if len(events) > 0 {
			share.Percent = float64(counts[sev]) * 100 / float64(len(events))
		}
		shares = append(shares, share)
	}
	return shares
}

func LiveFeed(events []domain.NetworkEvent) LiveFeedModel {
	if events == nil {
		events = []domain.NetworkEvent{}
	}
	return LiveFeedModel{Events: events, Initializing: len(events) == 0}
}

// Console renders the banner followed by one alert line per non-LOW event.
func Console(events []domain.NetworkEvent) ConsoleModel {
	lines := append([]string(nil), ConsoleBanner...)
	for _, e := range events {
		if e.Severity == domain.SeverityLow {
			continue
		}
		lines = append(lines, AlertLine(e))
	}
	return ConsoleModel{Lines: lines}
}

// AlertLine formats an event the way the console prints it.
func AlertLine(e domain.NetworkEvent) string {
	return fmt.Sprintf("[%s] ALERT: %s threat from %s - Protocol: %s",
		e.ClockTime(), e.Severity, e.SourceIP, e.Protocol)
}
