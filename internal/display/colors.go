package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color represents terminal color options
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightCyan
)

// ColorTheme maps message kinds to colors
type ColorTheme struct {
	Primary Color
	Success Color
	Warning Color
	Error   Color
	Info    Color
	Muted   Color
}

var palette = map[Color]*color.Color{
	ColorReset:        color.New(color.Reset),
	ColorRed:          color.New(color.FgRed),
	ColorGreen:        color.New(color.FgGreen),
	ColorYellow:       color.New(color.FgYellow),
	ColorBlue:         color.New(color.FgBlue),
	ColorCyan:         color.New(color.FgCyan),
	ColorWhite:        color.New(color.FgWhite),
	ColorBrightRed:    color.New(color.FgHiRed),
	ColorBrightGreen:  color.New(color.FgHiGreen),
	ColorBrightYellow: color.New(color.FgHiYellow),
	ColorBrightBlue:   color.New(color.FgHiBlue),
	ColorBrightCyan:   color.New(color.FgHiCyan),
}

// ThemeByName returns a color theme by name, dark when unknown
func ThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return ColorTheme{Primary: ColorBlue, Success: ColorGreen, Warning: ColorYellow, Error: ColorRed, Info: ColorCyan, Muted: ColorReset}
	case "high-contrast":
		return ColorTheme{Primary: ColorBrightBlue, Success: ColorBrightGreen, Warning: ColorBrightYellow, Error: ColorBrightRed, Info: ColorBrightCyan, Muted: ColorWhite}
	case "plain":
		return ColorTheme{}
	default:
		return ColorTheme{Primary: ColorBrightBlue, Success: ColorBrightGreen, Warning: ColorBrightYellow, Error: ColorBrightRed, Info: ColorCyan, Muted: ColorWhite}
	}
}

// colorizer applies colors only when the terminal supports them
type colorizer struct {
	enabled bool
}

func newColorizer(wanted bool) colorizer {
	return colorizer{enabled: wanted && detectColorSupport()}
}

// detectColorSupport checks stdout is a color-capable terminal
func detectColorSupport() bool {
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if termenv.EnvNoColor() || os.Getenv("TERM") == "dumb" {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func (c colorizer) sprint(clr Color, text string) string {
	if !c.enabled || clr == ColorReset {
		return text
	}
	if fn, ok := palette[clr]; ok {
		return fn.Sprint(text)
	}
	return text
}

func (c colorizer) sprintf(clr Color, format string, args ...interface{}) string {
	return c.sprint(clr, fmt.Sprintf(format, args...))
}
