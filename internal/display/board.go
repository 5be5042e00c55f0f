package display

import "sync"

// CardRef: стабильный идентификатор цели отображения (id элемента в разметке).
type CardRef string

// Board хранит текущее содержимое карточек и строку статуса.
// Пишет только контроллер, читают HTTP-обработчики.
type Board struct {
	mu     sync.RWMutex
	cards  map[CardRef]string
	order  []CardRef
	status string
}

// NewBoard заводит карточки с плейсхолдером до первого отчета.
func NewBoard(refs []CardRef, placeholder string) *Board {
	b := &Board{
		cards: make(map[CardRef]string, len(refs)),
		order: make([]CardRef, 0, len(refs)),
	}
	for _, ref := range refs {
		if _, dup := b.cards[ref]; dup {
			continue
		}
		b.cards[ref] = placeholder
		b.order = append(b.order, ref)
	}
	return b
}

// SetText записывает значение в карточку. Неизвестные ссылки игнорируются:
// набор карточек фиксируется при старте.
func (b *Board) SetText(ref CardRef, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cards[ref]; ok {
		b.cards[ref] = text
	}
}

func (b *Board) Text(ref CardRef) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.cards[ref]
	return t, ok
}

// Cards возвращает копию содержимого карточек.
func (b *Board) Cards() map[CardRef]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[CardRef]string, len(b.cards))
	for k, v := range b.cards {
		out[k] = v
	}
	return out
}

// Refs: карточки в порядке разметки.
func (b *Board) Refs() []CardRef {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]CardRef(nil), b.order...)
}

func (b *Board) SetStatus(s string) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

func (b *Board) Status() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}
