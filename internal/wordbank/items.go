package wordbank

import "accentcoach/internal/domain"

// DefaultItems returns the built-in practice words. Kanji is the written form whose reading must
// match Word. Readings are display strings and may mix Hangul transliteration with kana.
func DefaultItems() []domain.WordItem {
	return []domain.WordItem{
		{
			ID:          1,
			Word:        "はし",
			Kanji:       "箸",
			Reading:     "はし",
			AccentLabel: "두고형 (箸: 젓가락)",
			Pattern:     []int{1, 0},
			Description: "첫 음이 '높고' 두 번째 음이 '낮음'. '하'에서 소리를 떨어뜨리세요.",
		},
		{
			ID:          2,
			Word:        "はし",
			Kanji:       "橋",
			Reading:     "はし",
			AccentLabel: "평판형/미고형 (橋: 다리)",
			Pattern:     []int{0, 1},
			Description: "첫 음이 '낮고' 두 번째 음이 '높음'. 끝을 살짝 올리는 느낌입니다.",
		},
		{
			ID:          3,
			Word:        "あつい",
			Kanji:       "暑い",
			Reading:     "あつい",
			AccentLabel: "중고형 (暑い: 덥다)",
			Pattern:     []int{0, 1, 0},
			Description: "가운데 'つ'만 높습니다. 산을 넘어가듯 발음하세요.",
		},
		{
			ID:          4,
			Word:        "がっこう",
			Kanji:       "学校",
			Reading:     "가っ공",
			AccentLabel: "평판형 (学校: 학교)",
			Pattern:     []int{0, 1, 1, 1},
			Description: "첫 음만 낮고 나머지는 평평하게 높음을 유지합니다.",
		},
		{
			ID:          5,
			Word:        "ざっし",
			Kanji:       "雑誌",
			Reading:     "ざっ시",
			AccentLabel: "평판형 (雑誌: 잡지)",
			Pattern:     []int{0, 1, 1},
			Description: "첫 음만 낮고 나머지는 높게 유지. 'ざ'를 정확히 발음하세요.",
		},
	}
}
