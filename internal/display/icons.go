package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon has a Unicode glyph and an ASCII fallback
type Icon struct {
	Unicode string
	ASCII   string
}

var icons = map[string]Icon{
	"success":  {Unicode: "✔", ASCII: "[OK]"},
	"error":    {Unicode: "✘", ASCII: "[ERR]"},
	"warning":  {Unicode: "⚠", ASCII: "[WARN]"},
	"info":     {Unicode: "ℹ", ASCII: "[INFO]"},
	"backup":   {Unicode: "⬇", ASCII: "[SAVE]"},
	"restore":  {Unicode: "⬆", ASCII: "[LOAD]"},
	"schedule": {Unicode: "⏱", ASCII: "[AUTO]"},
	"mirror":   {Unicode: "☁", ASCII: "[MIRROR]"},
}

// detectUnicodeSupport checks if the terminal can print the Unicode glyphs
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "vt100" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func renderIcon(name string, unicode bool) string {
	icon, ok := icons[name]
	if !ok {
		return ""
	}
	if unicode {
		return icon.Unicode
	}
	return icon.ASCII
}
