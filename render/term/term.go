// Package term prints a match view to a terminal.
package term

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/youssefsiam38/arenawatch/render"
)

const defaultCellWidth = 3

var (
	textStyle    = lipgloss.NewStyle()
	summaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8"))
	boardStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#6C7086"))
)

// Option configures a Printer.
type Option func(*Printer)

// WithCellWidth sets the width of one board cell in columns.
func WithCellWidth(w int) Option {
	return func(p *Printer) {
		if w > 0 {
			p.cellWidth = w
		}
	}
}

// Printer turns an element tree into styled terminal text. Elements laid
// out as grids of leaf cells print as boards; everything else prints as
// one line per element with text.
type Printer struct {
	cellWidth int
}

// New creates a Printer.
func New(opts ...Option) *Printer {
	p := &Printer{cellWidth: defaultCellWidth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render prints a container with the default options.
func Render(c *render.Container) string {
	return New().Render(c.Root())
}

// Render prints the tree rooted at root.
func (p *Printer) Render(root *render.Element) string {
	if root == nil {
		return ""
	}
	var blocks []string
	p.collect(root, &blocks)
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (p *Printer) collect(el *render.Element, blocks *[]string) {
	if cols := boardColumns(el); cols > 0 {
		*blocks = append(*blocks, p.board(el, cols))
		return
	}

	if el.Text != "" {
		*blocks = append(*blocks, lineStyle(el).Render(el.Text))
	}
	for _, child := range el.Children {
		p.collect(child, blocks)
	}
}

func (p *Printer) board(el *render.Element, cols int) string {
	var rows []string
	var row []string
	for i, cell := range el.Children {
		row = append(row, p.cell(cell))
		if (i+1)%cols == 0 || i == len(el.Children)-1 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = row[:0:0]
		}
	}
	return boardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (p *Printer) cell(el *render.Element) string {
	style := lipgloss.NewStyle().Width(p.cellWidth).Align(lipgloss.Center)
	text := el.Text
	switch {
	case el.Colour == "":
	case text == "":
		style = style.Background(lipgloss.Color(el.Colour))
	default:
		style = style.Foreground(lipgloss.Color(el.Colour))
	}
	if el.HasClass("dimmed") {
		style = style.Faint(true)
	}
	if text == "" {
		text = " "
	}
	return style.Render(text)
}

func lineStyle(el *render.Element) lipgloss.Style {
	switch {
	case el.HasClass("game-error"):
		return errorStyle
	case el.HasClass("game-summary"):
		return summaryStyle
	case el.Colour != "":
		return textStyle.Foreground(lipgloss.Color(el.Colour))
	default:
		return textStyle
	}
}

// boardColumns returns the column count of an element whose children are
// all leaf cells in a grid layout, or 0.
func boardColumns(el *render.Element) int {
	if el.Style["display"] != "grid" || len(el.Children) == 0 {
		return 0
	}
	for _, child := range el.Children {
		if len(child.Children) > 0 {
			return 0
		}
	}

	tmpl := strings.TrimSpace(el.Style["grid-template-columns"])
	if rest, ok := strings.CutPrefix(tmpl, "repeat("); ok {
		n, _, _ := strings.Cut(rest, ",")
		cols, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || cols <= 0 {
			return 0
		}
		return cols
	}
	return len(strings.Fields(tmpl))
}
