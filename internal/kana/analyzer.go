package kana

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

var ErrUnknownReading = errors.New("reading could not be resolved")

// Analyzer resolves katakana readings. Pure-kana input is converted directly; anything else is
// tokenized with the IPA dictionary, which is loaded on first use.
type Analyzer struct {
	once sync.Once
	t    *tokenizer.Tokenizer
	err  error
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Reading returns the katakana reading of text.
func (a *Analyzer) Reading(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUnknownReading
	}
	if IsKana(text) {
		return ToKatakana(text), nil
	}

	t, err := a.tokenizer()
	if err != nil {
		return "", err
	}

	var reading strings.Builder
	for _, token := range t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features: index 7 is the katakana reading.
		features := token.Features()
		switch {
		case len(features) > 7 && features[7] != "*":
			reading.WriteString(features[7])
		case IsKana(token.Surface):
			reading.WriteString(ToKatakana(token.Surface))
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownReading, token.Surface)
		}
	}
	if reading.Len() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownReading, text)
	}
	return reading.String(), nil
}

func (a *Analyzer) tokenizer() (*tokenizer.Tokenizer, error) {
	a.once.Do(func() {
		a.t, a.err = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
		if a.err != nil {
			a.err = fmt.Errorf("failed to load kagome tokenizer: %w", a.err)
		}
	})
	return a.t, a.err
}
