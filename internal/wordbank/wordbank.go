// Package wordbank holds the ordered list of practice words.
package wordbank

import (
	"errors"
	"fmt"
	"sync"

	"accentcoach/internal/domain"
	"accentcoach/internal/kana"
)

var (
	ErrEmpty          = errors.New("word bank is empty")
	ErrDuplicateID    = errors.New("duplicate word id")
	ErrInvalidPattern = errors.New("invalid pitch pattern")
	ErrUnknownWord    = errors.New("unknown word id")
	ErrKanjiMismatch  = errors.New("kanji reading does not match word")
)

// Reader resolves the katakana reading of a word.
type Reader interface {
	Reading(text string) (string, error)
}

// Bank is a read-only ordered word list with a cursor that wraps around.
type Bank struct {
	items []domain.WordItem

	mu    sync.Mutex
	index int
}

// New validates items and returns a bank positioned on the first item.
// When reader is non-nil, a word's kanji must read as the word and every pattern must have one
// entry per mora of that reading.
func New(items []domain.WordItem, reader Reader) (*Bank, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[int]bool, len(items))
	copied := make([]domain.WordItem, 0, len(items))
	for _, item := range items {
		if seen[item.ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = true

		if err := validatePattern(item, reader); err != nil {
			return nil, err
		}

		item.Pattern = append([]int(nil), item.Pattern...)
		copied = append(copied, item)
	}

	return &Bank{items: copied}, nil
}

// Default returns the built-in practice list.
func Default(reader Reader) (*Bank, error) {
	return New(DefaultItems(), reader)
}

func validatePattern(item domain.WordItem, reader Reader) error {
	if len(item.Pattern) == 0 {
		return fmt.Errorf("%w: word %d has an empty pattern", ErrInvalidPattern, item.ID)
	}
	for _, level := range item.Pattern {
		if level != 0 && level != 1 {
			return fmt.Errorf("%w: word %d has level %d", ErrInvalidPattern, item.ID, level)
		}
	}
	if reader == nil {
		return nil
	}

	reading, err := reader.Reading(item.Word)
	if err != nil {
		return fmt.Errorf("word %d (%s): %w", item.ID, item.Word, err)
	}
	if item.Kanji != "" {
		kanjiReading, err := reader.Reading(item.Kanji)
		if err != nil {
			return fmt.Errorf("word %d (%s): %w", item.ID, item.Kanji, err)
		}
		if kanjiReading != kana.ToKatakana(item.Word) {
			return fmt.Errorf("%w: word %d %s reads %s, not %s",
				ErrKanjiMismatch, item.ID, item.Kanji, kanjiReading, item.Word)
		}
		reading = kanjiReading
	}
	if morae := kana.MoraCount(reading); morae != len(item.Pattern) {
		return fmt.Errorf("%w: word %d (%s) has %d morae but %d pattern entries",
			ErrInvalidPattern, item.ID, item.Word, morae, len(item.Pattern))
	}
	return nil
}

// Len returns the number of words.
func (b *Bank) Len() int {
	return len(b.items)
}

// Items returns a copy of the word list.
func (b *Bank) Items() []domain.WordItem {
	out := make([]domain.WordItem, len(b.items))
	for i, item := range b.items {
		out[i] = cloneItem(item)
	}
	return out
}

// Current returns the word under the cursor.
func (b *Bank) Current() domain.WordItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneItem(b.items[b.index])
}

// Next advances the cursor, wrapping to the first word after the last one.
func (b *Bank) Next() domain.WordItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = (b.index + 1) % len(b.items)
	return cloneItem(b.items[b.index])
}

// ByID returns the word with the given id.
func (b *Bank) ByID(id int) (domain.WordItem, error) {
	for _, item := range b.items {
		if item.ID == id {
			return cloneItem(item), nil
		}
	}
	return domain.WordItem{}, fmt.Errorf("%w: %d", ErrUnknownWord, id)
}

func cloneItem(item domain.WordItem) domain.WordItem {
	item.Pattern = append([]int(nil), item.Pattern...)
	return item
}
