package display

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Атрибуты разметки: единственная декларативная конфигурация дашборда.
const (
	AttrKPI    = "data-kpi"    // карточка: ключ метрики
	AttrChart  = "data-chart"  // <img> графика: latency | split
	AttrStatus = "data-status" // строка статуса
)

// Binding связывает ключ метрики с карточкой.
type Binding struct {
	Key    string  `json:"key"`
	Target CardRef `json:"target"`
}

// DiscoverBindings один раз проходит по разметке и собирает все элементы
// с data-kpi. Повтор id считается ошибкой конфигурации.
func DiscoverBindings(markup []byte) ([]Binding, error) {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse dashboard markup: %w", err)
	}

	var bindings []Binding
	seen := make(map[CardRef]string)
	var walkErr error

	walk(doc, func(n *html.Node) {
		ref, key, ok := cardOf(n)
		if !ok || walkErr != nil {
			return
		}
		if prev, dup := seen[ref]; dup {
			walkErr = fmt.Errorf("dashboard markup: card %q bound twice (%s, %s)", ref, prev, key)
			return
		}
		seen[ref] = key
		bindings = append(bindings, Binding{Key: key, Target: ref})
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return bindings, nil
}

// Targets: список карточек из привязок.
func Targets(bindings []Binding) []CardRef {
	refs := make([]CardRef, 0, len(bindings))
	for _, b := range bindings {
		refs = append(refs, b.Target)
	}
	return refs
}

// cardOf распознает карточку: ключ из data-kpi, ссылка из id или kpi-<key>.
func cardOf(n *html.Node) (CardRef, string, bool) {
	if n.Type != html.ElementNode {
		return "", "", false
	}
	key := strings.TrimSpace(attr(n, AttrKPI))
	if key == "" {
		return "", "", false
	}
	id := strings.TrimSpace(attr(n, "id"))
	if id == "" {
		id = "kpi-" + key
	}
	return CardRef(id), key, true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
