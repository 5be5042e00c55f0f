package display

import (
	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/kpi"
)

// CardBinder держит таблицу привязок, построенную при старте,
// и раскладывает отчет по карточкам. DOM/разметку повторно не опрашивает.
type CardBinder struct {
	bindings  []Binding
	board     *Board
	formatter *kpi.Formatter
}

func NewCardBinder(bindings []Binding, board *Board, formatter *kpi.Formatter) *CardBinder {
	if formatter == nil {
		formatter = kpi.NewFormatter("en")
	}
	return &CardBinder{
		bindings:  append([]Binding(nil), bindings...),
		board:     board,
		formatter: formatter,
	}
}

// Render пишет отформатированное значение в каждую карточку.
// Отсутствующий ключ дает плейсхолдер, остальные карточки не страдают.
func (b *CardBinder) Render(kpis domain.KpiMap) {
	for _, bind := range b.bindings {
		b.board.SetText(bind.Target, b.formatter.Format(kpis[bind.Key], bind.Key))
	}
}

// Bindings: копия таблицы привязок.
func (b *CardBinder) Bindings() []Binding {
	return append([]Binding(nil), b.bindings...)
}
