package view

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed theme.yaml
var themeYAML []byte

// Theme holds the static texts and palette of the view. It is parsed once
// per process and never torn down.
type Theme struct {
	Title        string       `yaml:"title" json:"title"`
	Subtitle     string       `yaml:"subtitle" json:"subtitle"`
	FontFamily   string       `yaml:"font_family" json:"font_family"`
	Background   string       `yaml:"background" json:"background"`
	Placeholders Placeholders `yaml:"placeholders" json:"placeholders"`
	Legend       LegendText   `yaml:"legend" json:"legend"`
	Toasts       Toasts       `yaml:"toasts" json:"toasts"`
}

// Placeholders are the texts of the two degenerate states.
type Placeholders struct {
	Empty    string `yaml:"empty" json:"empty"`
	NeedMore string `yaml:"need_more" json:"need_more"`
	// Counts is a format taking processed and pending counts.
	Counts string `yaml:"counts" json:"counts"`
}

// LegendText labels the legend panel.
type LegendText struct {
	Title         string            `yaml:"title" json:"title"`
	FamiliesTitle string            `yaml:"families_title" json:"families_title"`
	Connections   map[string]string `yaml:"connections" json:"connections"`
}

// Toasts are shown for notification events.
type Toasts struct {
	MemoryProcessed string `yaml:"memory_processed" json:"memory_processed"`
	MemoryFailed    string `yaml:"memory_failed" json:"memory_failed"`
}

var (
	themeOnce sync.Once
	theme     *Theme
	themeErr  error
)

// LoadTheme parses the embedded theme on first use.
func LoadTheme() (*Theme, error) {
	themeOnce.Do(func() {
		var t Theme
		if err := yaml.Unmarshal(themeYAML, &t); err != nil {
			themeErr = fmt.Errorf("failed to parse theme: %w", err)
			return
		}
		theme = &t
	})
	return theme, themeErr
}

// DefaultTheme is LoadTheme for callers that cannot proceed without it.
// The asset is compiled in, so a failure is a build defect.
func DefaultTheme() *Theme {
	t, err := LoadTheme()
	if err != nil {
		panic(err)
	}
	return t
}
