// Package view renders fgplan results for people or as JSON.
package view

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ViewType selects the output format.
type ViewType rune

const (
	ViewHuman ViewType = 'H'
	ViewJSON  ViewType = 'J'
)

// String returns the flag spelling of the view type.
func (vt ViewType) String() string {
	switch vt {
	case ViewHuman:
		return "human"
	case ViewJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseOutputFormat maps an --output value to a ViewType. An empty value
// means human.
func ParseOutputFormat(s string) (ViewType, error) {
	switch strings.ToLower(s) {
	case "", "human":
		return ViewHuman, nil
	case "json":
		return ViewJSON, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

var (
	highlight = color.RGB(50, 108, 229)
	failure   = color.RGB(229, 50, 50)
	muted     = color.New(color.Faint)
)

// Highlight renders format in the accent color.
func Highlight(format string, a ...any) string {
	return highlight.Sprintf(format, a...)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "s") || strings.HasSuffix(noun, "ch") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
