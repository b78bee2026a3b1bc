package sshserver

import (
	"strconv"
	"strings"

	"pkt.systems/snippad/schema"
)

type rgb struct {
	r int
	g int
	b int
}

// tuiTheme colors terminal lines by their marker.
type tuiTheme struct {
	Name string
	// CodeStyle is the chroma style used for cat output.
	CodeStyle string
	ErrorFG   rgb
	SuccessFG rgb
	InfoFG    rgb
	HeadingFG rgb
	PromptFG  rgb
	EventFG   rgb
}

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
)

// DefaultTheme is used when the configured theme is unknown.
const DefaultTheme = "outrun"

var tuiThemes = map[string]tuiTheme{
	"outrun": {
		Name:      "outrun",
		CodeStyle: "dracula",
		ErrorFG:   rgb{r: 255, g: 107, b: 107},
		SuccessFG: rgb{r: 112, g: 214, b: 255},
		InfoFG:    rgb{r: 154, g: 163, b: 178},
		HeadingFG: rgb{r: 255, g: 91, b: 189},
		PromptFG:  rgb{r: 0, g: 229, b: 255},
		EventFG:   rgb{r: 110, g: 136, b: 255},
	},
	"gruvbox": {
		Name:      "gruvbox",
		CodeStyle: "gruvbox",
		ErrorFG:   rgb{r: 251, g: 73, b: 52},
		SuccessFG: rgb{r: 184, g: 187, b: 38},
		InfoFG:    rgb{r: 146, g: 131, b: 116},
		HeadingFG: rgb{r: 250, g: 189, b: 47},
		PromptFG:  rgb{r: 250, g: 189, b: 47},
		EventFG:   rgb{r: 131, g: 165, b: 152},
	},
	"tokyo-midnight": {
		Name:      "tokyo-midnight",
		CodeStyle: "tokyonight-night",
		ErrorFG:   rgb{r: 247, g: 118, b: 142},
		SuccessFG: rgb{r: 158, g: 206, b: 106},
		InfoFG:    rgb{r: 127, g: 133, b: 163},
		HeadingFG: rgb{r: 187, g: 154, b: 247},
		PromptFG:  rgb{r: 122, g: 162, b: 247},
		EventFG:   rgb{r: 125, g: 207, b: 255},
	},
}

// CodeStyle returns the chroma style paired with a terminal theme.
func CodeStyle(theme string) string {
	return themeForName(theme).CodeStyle
}

func themeForName(name string) tuiTheme {
	if theme, ok := tuiThemes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return tuiThemes[DefaultTheme]
}

// styleLine strips the leading marker and colors the line for an ANSI terminal.
func (t tuiTheme) styleLine(line string) string {
	text, marker := schema.StripMarker(line)
	switch marker {
	case schema.ErrorMarker:
		return ansiFgRGB(t.ErrorFG) + text + ansiReset
	case schema.SuccessMarker:
		return ansiFgRGB(t.SuccessFG) + text + ansiReset
	case schema.InfoMarker:
		return ansiDim + ansiFgRGB(t.InfoFG) + text + ansiReset
	case schema.HeadingMarker:
		return ansiBold + ansiFgRGB(t.HeadingFG) + text + ansiReset
	default:
		return text
	}
}

func (t tuiTheme) styleEvent(text string) string {
	return ansiFgRGB(t.EventFG) + text + ansiReset
}

func (t tuiTheme) stylePrompt(prompt string) string {
	return ansiBold + ansiFgRGB(t.PromptFG) + prompt + ansiReset
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
