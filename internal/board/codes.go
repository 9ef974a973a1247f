package board

import (
	"fmt"
	"strings"
)

// Character codes from the board's published code table.
const (
	CodeBlank  = 0
	CodeRed    = 63
	CodeOrange = 64
	CodeYellow = 65
	CodeGreen  = 66
	CodeBlue   = 67
	CodeViolet = 68
	CodeWhite  = 69
	CodeBlack  = 70
	CodeFilled = 71
)

var codeToRune = map[int]rune{
	0:  ' ',
	27: '1', 28: '2', 29: '3', 30: '4', 31: '5', 32: '6', 33: '7', 34: '8', 35: '9', 36: '0',
	37: '!', 38: '@', 39: '#', 40: '$', 41: '(', 42: ')',
	44: '-', 46: '+', 47: '&', 48: '=', 49: ';', 50: ':',
	52: '\'', 53: '"', 54: '%', 55: ',', 56: '.', 59: '/',
	60: '?', 62: '♥',
	63: '🟥', 64: '🟧', 65: '🟨', 66: '🟩', 67: '🟦', 68: '🟪',
	69: '⬜', 70: '⬛', 71: '⬛',
}

var runeToCode = map[rune]int{
	'❤': 62,
	'■': 71,
}

func init() {
	for i := 0; i < 26; i++ {
		codeToRune[i+1] = rune('A' + i)
	}
	for code, r := range codeToRune {
		if code == 71 {
			continue
		}
		runeToCode[r] = code
	}
}

// CodeFor returns the code for r after upper-casing it. Characters the
// board cannot show map to blank.
func CodeFor(r rune) int {
	if code, ok := runeToCode[toUpper(r)]; ok {
		return code
	}
	return CodeBlank
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

// TextToLayout upper-cases text, truncates it to the board width and
// centres it on the first row.
func TextToLayout(text string, t Type) Layout {
	layout := t.Blank()
	runes := []rune(strings.ToUpper(text))
	if len(runes) > t.Cols {
		runes = runes[:t.Cols]
	}
	start := (t.Cols - len(runes)) / 2
	for i, r := range runes {
		layout[0][start+i] = CodeFor(r)
	}
	return layout
}

// DefaultPreviewRows is the number of rows Preview renders when asked for
// zero or fewer.
const DefaultPreviewRows = 3

// Preview renders up to maxRows rows of layout as readable text for debug
// logging. Unknown codes render as [n].
func Preview(layout Layout, maxRows int) []string {
	if len(layout) == 0 {
		return []string{"empty layout"}
	}
	if maxRows <= 0 {
		maxRows = DefaultPreviewRows
	}

	cols := len(layout[0])
	lines := []string{fmt.Sprintf("layout %dx%d", len(layout), cols)}
	for i, row := range layout {
		if i == maxRows {
			lines = append(lines, fmt.Sprintf("... (%d total rows)", len(layout)))
			break
		}
		var sb strings.Builder
		for _, code := range row {
			if r, ok := codeToRune[code]; ok {
				sb.WriteRune(r)
			} else {
				fmt.Fprintf(&sb, "[%d]", code)
			}
		}
		lines = append(lines, fmt.Sprintf("row %d: '%s'", i+1, strings.TrimSpace(sb.String())))
	}
	return lines
}
