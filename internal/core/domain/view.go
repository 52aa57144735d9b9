package domain

import "fmt"

// View identifies one of the dashboard's read-only views.
type View string

const (
	ViewOverview View = "dashboard"
	ViewLiveFeed View = "live-monitor"
	ViewAnalyzer View = "threat-analysis"
	ViewConsole  View = "terminal"
)

// DefaultView is active when the process starts.
const DefaultView = ViewOverview

// NavigationItem is an entry of the view selector.
type NavigationItem struct {
	ID   View   `json:"id"`
	Name string `json:"name"`
}

// Navigation returns the selectable views in display order.
func Navigation() []NavigationItem {
	return []NavigationItem{
		{ID: ViewOverview, Name: "Dashboard"},
		{ID: ViewLiveFeed, Name: "Live Monitor"},
		{ID: ViewAnalyzer, Name: "AI Analyzer"},
		{ID: ViewConsole, Name: "Command Center"},
	}
}

// ParseView validates a view identifier.
func ParseView(s string) (View, error) {
	for _, item := range Navigation() {
		if string(item.ID) == s {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}
