package wordbank

import (
	"errors"
	"sync"
	"testing"

	"accentcoach/internal/domain"
	"accentcoach/internal/kana"
)

func TestDefaultBankValidatesAgainstMorae(t *testing.T) {
	t.Parallel()

	bank, err := Default(kana.NewAnalyzer())
	if err != nil {
		t.Fatalf("default bank failed validation: %v", err)
	}
	if bank.Len() != 5 {
		t.Fatalf("unexpected word count: %d", bank.Len())
	}
	if bank.Current().ID != 1 {
		t.Fatalf("expected first word, got %+v", bank.Current())
	}
}

func TestNextWrapsAroundAfterLen(t *testing.T) {
	t.Parallel()

	bank, err := Default(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for start := 0; start < bank.Len(); start++ {
		origin := bank.Current()
		for i := 0; i < bank.Len(); i++ {
			bank.Next()
		}
		if got := bank.Current(); got.ID != origin.ID {
			t.Fatalf("expected to return to word %d, got %d", origin.ID, got.ID)
		}
		bank.Next()
	}
}

func TestNextOrder(t *testing.T) {
	t.Parallel()

	bank, _ := Default(nil)
	var ids []int
	for i := 0; i < 6; i++ {
		ids = append(ids, bank.Next().ID)
	}
	want := []int{2, 3, 4, 5, 1, 2}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", ids, want)
		}
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	dup := []domain.WordItem{
		{ID: 1, Word: "はし", Pattern: []int{1, 0}},
		{ID: 1, Word: "はし", Pattern: []int{0, 1}},
	}
	if _, err := New(dup, nil); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	badLevel := []domain.WordItem{{ID: 1, Word: "はし", Pattern: []int{2, 0}}}
	if _, err := New(badLevel, nil); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}

	empty := []domain.WordItem{{ID: 1, Word: "はし"}}
	if _, err := New(empty, nil); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern for empty pattern, got %v", err)
	}
}

func TestNewRejectsMoraMismatch(t *testing.T) {
	t.Parallel()

	items := []domain.WordItem{{ID: 9, Word: "がっこう", Reading: "가っ공", Pattern: []int{0, 1, 1}}}
	_, err := New(items, kana.NewAnalyzer())
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected mora mismatch error, got %v", err)
	}
}

func TestNewPropagatesReaderError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("no reading")
	items := []domain.WordItem{{ID: 1, Word: "x", Pattern: []int{1}}}
	_, err := New(items, failingReader{err: readErr})
	if !errors.Is(err, readErr) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestItemsAreCopies(t *testing.T) {
	t.Parallel()

	bank, _ := Default(nil)
	items := bank.Items()
	items[0].Pattern[0] = 9

	if bank.Current().Pattern[0] != 1 {
		t.Fatalf("bank mutated through Items copy")
	}
}

func TestByID(t *testing.T) {
	t.Parallel()

	bank, _ := Default(nil)
	item, err := bank.ByID(4)
	if err != nil || item.Word != "がっこう" {
		t.Fatalf("unexpected lookup result %+v, %v", item, err)
	}
	if _, err := bank.ByID(42); !errors.Is(err, ErrUnknownWord) {
		t.Fatalf("expected ErrUnknownWord, got %v", err)
	}
}

func TestDefaultBankResolvesKanjiWithTokenizer(t *testing.T) {
	t.Parallel()

	reader := &recordingReader{next: kana.NewAnalyzer()}
	if _, err := Default(reader); err != nil {
		t.Fatalf("default bank failed validation: %v", err)
	}

	want := []string{"箸", "橋", "暑い", "学校", "雑誌"}
	got := reader.nonKana()
	if len(got) != len(want) {
		t.Fatalf("expected kanji %v to be resolved, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected kanji %v to be resolved, got %v", want, got)
		}
	}
}

func TestNewRejectsKanjiReadingMismatch(t *testing.T) {
	t.Parallel()

	items := []domain.WordItem{{ID: 7, Word: "はし", Kanji: "学校", Pattern: []int{1, 0}}}
	_, err := New(items, kana.NewAnalyzer())
	if !errors.Is(err, ErrKanjiMismatch) {
		t.Fatalf("expected ErrKanjiMismatch, got %v", err)
	}
}

func TestNewChecksMoraeOfKanjiReading(t *testing.T) {
	t.Parallel()

	items := []domain.WordItem{{ID: 8, Word: "ざっし", Kanji: "雑誌", Pattern: []int{0, 1}}}
	_, err := New(items, kana.NewAnalyzer())
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestNewSkipsKanjiWithoutReader(t *testing.T) {
	t.Parallel()

	items := []domain.WordItem{{ID: 7, Word: "はし", Kanji: "学校", Pattern: []int{1, 0}}}
	if _, err := New(items, nil); err != nil {
		t.Fatalf("unexpected error without reader: %v", err)
	}
}

type recordingReader struct {
	next Reader

	mu    sync.Mutex
	texts []string
}

func (r *recordingReader) Reading(text string) (string, error) {
	if !kana.IsKana(text) {
		r.mu.Lock()
		r.texts = append(r.texts, text)
		r.mu.Unlock()
	}
	return r.next.Reading(text)
}

func (r *recordingReader) nonKana() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type failingReader struct{ err error }

func (r failingReader) Reading(string) (string, error) { return "", r.err }
