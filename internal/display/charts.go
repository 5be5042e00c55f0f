package display

import (
	"sync"

	"go.uber.org/zap"
)

// ChartKind: один из двух графиков дашборда.
type ChartKind string

const (
	ChartLatency ChartKind = "latency" // столбцы avg/p95/p99
	ChartSplit   ChartKind = "split"   // кольцо success/errors
)

var (
	latencyLabels = []string{"Avg", "P95", "P99"}
	splitLabels   = []string{"Success", "Errors"}
)

// Dataset: данные одного графика.
type Dataset struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

func (d Dataset) clone() Dataset {
	return Dataset{
		Labels: append([]string(nil), d.Labels...),
		Values: append([]float64(nil), d.Values...),
	}
}

// Renderer, внешняя библиотека графиков, принимает массив и перерисовывает.
type Renderer interface {
	Redraw(kind ChartKind, data Dataset) ([]byte, error)
}

type chartState struct {
	data  Dataset
	image []byte
}

// ChartAdapter владеет обоими графиками. Каждый вызов полностью заменяет
// данные, ничего не сливается с прошлым отчетом.
type ChartAdapter struct {
	mu       sync.RWMutex
	renderer Renderer
	logger   *zap.Logger
	charts   map[ChartKind]*chartState
}

func NewChartAdapter(renderer Renderer, logger *zap.Logger) *ChartAdapter {
	a := &ChartAdapter{
		renderer: renderer,
		logger:   logger.Named("charts"),
		charts: map[ChartKind]*chartState{
			ChartLatency: {data: Dataset{Labels: latencyLabels, Values: []float64{0, 0, 0}}},
			ChartSplit:   {data: Dataset{Labels: splitLabels, Values: []float64{0, 0}}},
		},
	}
	// Первичная отрисовка, чтобы до первого отчета было что показать
	a.mu.Lock()
	for kind := range a.charts {
		a.redraw(kind)
	}
	a.mu.Unlock()
	return a
}

// SetLatency заменяет столбцы на [avg, p95, p99]; nil считается нулем.
func (a *ChartAdapter) SetLatency(avg, p95, p99 *float64) {
	a.set(ChartLatency, []float64{orZero(avg), orZero(p95), orZero(p99)})
}

// SetSuccessSplit заменяет сектора на [success, errors].
func (a *ChartAdapter) SetSuccessSplit(success, errors int64) {
	a.set(ChartSplit, []float64{float64(success), float64(errors)})
}

// Dataset возвращает копию текущих данных графика.
func (a *ChartAdapter) Dataset(kind ChartKind) Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.charts[kind]
	if !ok {
		return Dataset{}
	}
	return st.data.clone()
}

// Image: последняя отрисовка графика. false, если отрисовать не удалось.
func (a *ChartAdapter) Image(kind ChartKind) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.charts[kind]
	if !ok || st.image == nil {
		return nil, false
	}
	return st.image, true
}

func (a *ChartAdapter) set(kind ChartKind, values []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.charts[kind]
	st.data = Dataset{Labels: st.data.Labels, Values: values}
	a.redraw(kind)
}

// redraw вызывается под a.mu.
func (a *ChartAdapter) redraw(kind ChartKind) {
	st := a.charts[kind]
	img, err := a.renderer.Redraw(kind, st.data.clone())
	if err != nil {
		a.logger.Error("chart redraw failed", zap.String("chart", string(kind)), zap.Error(err))
		st.image = nil
		return
	}
	st.image = img
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
