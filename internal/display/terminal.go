package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TerminalPrinter, вторая форма показа, печатает карточки в консоль
// после каждого обновления.
type TerminalPrinter struct {
	out      io.Writer
	bindings []Binding

	title  lipgloss.Style
	card   lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	status lipgloss.Style
}

func NewTerminalPrinter(out io.Writer, bindings []Binding) *TerminalPrinter {
	return &TerminalPrinter{
		out:      out,
		bindings: append([]Binding(nil), bindings...),
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(24),
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		value:  lipgloss.NewStyle().Bold(true),
		status: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
	}
}

// Publish печатает кадр. Ошибки записи в консоль не важны.
func (p *TerminalPrinter) Publish(f Frame) {
	_, _ = io.WriteString(p.out, p.Render(f)+"\n")
}

// Render собирает текст кадра: по четыре карточки в ряд.
func (p *TerminalPrinter) Render(f Frame) string {
	var rows []string
	var row []string
	for _, b := range p.bindings {
		body := p.label.Render(b.Key) + "\n" + p.value.Render(f.Cards[b.Target])
		row = append(row, p.card.Render(body))
		if len(row) == 4 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	charts := fmt.Sprintf("latency %s | split %s", series(f.Latency), series(f.Split))

	return lipgloss.JoinVertical(lipgloss.Left,
		p.title.Render("VehicleConnect KPIs"),
		strings.Join(rows, "\n"),
		p.label.Render(charts),
		p.status.Render(f.Status),
	)
}

func series(d Dataset) string {
	parts := make([]string, 0, len(d.Values))
	for i, v := range d.Values {
		label := ""
		if i < len(d.Labels) {
			label = d.Labels[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%g", label, v))
	}
	return strings.Join(parts, " ")
}
