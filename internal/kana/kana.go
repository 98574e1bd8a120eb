// Package kana splits Japanese readings into morae and resolves readings for words written with kanji.
package kana

import "strings"

const hiraganaToKatakanaOffset = 'ァ' - 'ぁ'

// smallKana attach to the preceding kana to form a single mora (拗音).
var smallKana = map[rune]bool{
	'ャ': true, 'ュ': true, 'ョ': true,
	'ァ': true, 'ィ': true, 'ゥ': true, 'ェ': true, 'ォ': true,
	'ヮ': true,
}

// ToKatakana converts hiragana to katakana and leaves every other rune untouched.
func ToKatakana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + hiraganaToKatakanaOffset
		}
		return r
	}, s)
}

// IsKatakana reports whether r is a katakana letter or the prolonged sound mark.
func IsKatakana(r rune) bool {
	return (r >= 'ァ' && r <= 'ヺ') || r == 'ー'
}

// IsKana reports whether s is non-empty and made only of hiragana or katakana.
func IsKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range ToKatakana(s) {
		if !IsKatakana(r) {
			return false
		}
	}
	return true
}

// Morae splits a kana reading into morae. Small ya/yu/yo and small vowels join the
// preceding kana; sokuon (ッ), moraic nasal (ン) and the long vowel mark each count as one.
// Runes outside the kana blocks are kept as single morae.
func Morae(reading string) []string {
	var morae []string
	for _, r := range ToKatakana(reading) {
		if smallKana[r] && len(morae) > 0 {
			morae[len(morae)-1] += string(r)
			continue
		}
		morae = append(morae, string(r))
	}
	return morae
}

// MoraCount returns len(Morae(reading)).
func MoraCount(reading string) int {
	return len(Morae(reading))
}
