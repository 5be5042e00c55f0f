package kpi

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// Placeholder выводится вместо отсутствующего значения.
const Placeholder = "--"

// Formatter превращает сырое значение KPI в строку для карточки.
// Локаль влияет только на группировку разрядов обычных чисел.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter создает форматтер для BCP-47 тега ("en-US", "de").
// Нераспознанный тег: английская локаль.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

var defaultFormatter = NewFormatter("en")

// Format: форматирование в английской локали.
func Format(value any, key string) string {
	return defaultFormatter.Format(value, key)
}

// Format никогда не паникует: все, что не число, выводится как есть.
func (f *Formatter) Format(value any, key string) string {
	if value == nil {
		return Placeholder
	}

	n, numeric := domain.ToFloat(value)
	if !numeric {
		return fmt.Sprint(value)
	}

	switch {
	case strings.Contains(key, "latency"):
		return strconv.FormatFloat(n, 'f', 1, 64) + " ms"
	case strings.Contains(key, "percent"):
		return strconv.FormatFloat(n, 'f', 1, 64) + "%"
	case !domain.Finite(n):
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return f.printer.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
	}
}
