package display

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/kpi"
)

// Frame: согласованный снимок всех целей отображения.
type Frame struct {
	Cards   map[CardRef]string `json:"cards"`
	Status  string             `json:"status"`
	Latency Dataset            `json:"latency"`
	Split   Dataset            `json:"split"`
}

// Dashboard собирает цели отображения, которые строятся один раз при старте.
type Dashboard struct {
	Board  *Board
	Cards  *CardBinder
	Charts *ChartAdapter
}

// NewDashboard строит привязки по разметке и заводит карточки и графики.
func NewDashboard(markup []byte, formatter *kpi.Formatter, renderer Renderer, logger *zap.Logger) (*Dashboard, error) {
	bindings, err := DiscoverBindings(markup)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("dashboard markup has no %s cards", AttrKPI)
	}

	board := NewBoard(Targets(bindings), kpi.Placeholder)
	logger.Info("dashboard cards bound", zap.Int("cards", len(bindings)))

	return &Dashboard{
		Board:  board,
		Cards:  NewCardBinder(bindings, board, formatter),
		Charts: NewChartAdapter(renderer, logger),
	}, nil
}

// Frame читает все цели. Согласованность между ними обеспечивает вызывающий.
func (d *Dashboard) Frame() Frame {
	return Frame{
		Cards:   d.Board.Cards(),
		Status:  d.Board.Status(),
		Latency: d.Charts.Dataset(ChartLatency),
		Split:   d.Charts.Dataset(ChartSplit),
	}
}
