package display

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// PageView: то, что страница показывает в данный момент.
type PageView struct {
	Cards   map[CardRef]string
	Status  string
	Version uint64 // номер обновления, сбрасывает кэш картинок
}

// Page отдает разметку дашборда с подставленными значениями.
// Разметка та же, из которой строились привязки.
type Page struct {
	markup     []byte
	chartsPath string
	refresh    time.Duration
}

func NewPage(markup []byte, chartsPath string, refresh time.Duration) (*Page, error) {
	if _, err := html.Parse(bytes.NewReader(markup)); err != nil {
		return nil, fmt.Errorf("parse dashboard markup: %w", err)
	}
	return &Page{
		markup:     markup,
		chartsPath: strings.TrimRight(chartsPath, "/"),
		refresh:    refresh,
	}, nil
}

func (p *Page) Render(w io.Writer, v PageView) error {
	doc, err := html.Parse(bytes.NewReader(p.markup))
	if err != nil {
		return fmt.Errorf("parse dashboard markup: %w", err)
	}

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if ref, _, ok := cardOf(n); ok {
			if text, found := v.Cards[ref]; found {
				setText(n, text)
			}
			return
		}
		switch {
		case hasAttr(n, AttrStatus):
			setText(n, v.Status)
		case n.Data == "img" && hasAttr(n, AttrChart):
			kind := url.PathEscape(attr(n, AttrChart))
			setAttr(n, "src", fmt.Sprintf("%s/%s.svg?v=%d", p.chartsPath, kind, v.Version))
		case n.Data == "meta" && strings.EqualFold(attr(n, "http-equiv"), "refresh") && p.refresh > 0:
			setAttr(n, "content", strconv.Itoa(int(p.refresh.Seconds())))
		}
	})

	return html.Render(w, doc)
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
