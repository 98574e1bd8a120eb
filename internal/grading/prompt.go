package grading

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
	"text/template"

	"accentcoach/internal/domain"
)

var promptTemplate = template.Must(template.New("grading").Parse(`당신은 일본어 악센트 전문 교사입니다. 사용자의 음성을 분석하여 일본어 표준어(Tokyo Accent)의 '피치 액센트'를 매우 엄격하게 평가하세요.

[학습 데이터]
단어: {{.Word}}
읽기: {{.Reading}}
표준 패턴: {{.Pattern}} (0=저음, 1=고음)
패턴 설명: {{.Description}}

[채점 규칙 - 매우 엄격함]
1. 피치 일치도: 각 음절의 고저 추이가 표준 패턴과 다르면 무조건 감점하세요.
2. 한국인 특유의 오류 체크:
   - 첫 음절을 고음으로 시작하는 버릇 (평판형인데 고음으로 시작 등)
   - 문장 끝을 한국어처럼 올리는 습관
   위 오류가 보이면 60점 이하로 엄격하게 채점하세요.
3. 90점 이상은 표준어 화자와 거의 차이가 없을 때만 부여하세요.

반드시 다음 JSON 형식으로 한국어로 응답하세요:
{
  "score": 숫자(0-100),
  "result": "합격/불합격 판정 메시지",
  "accent_feedback": "어느 음절에서 높낮이가 틀렸는지 상세 분석",
  "advice": "한국인 학습자를 위한 개선 팁"
}`))

type promptData struct {
	Word        string
	Reading     string
	Pattern     string
	Description string
}

// BuildPrompt renders the grading instruction for word.
func BuildPrompt(word domain.WordItem) (string, error) {
	levels := make([]string, len(word.Pattern))
	for i, level := range word.Pattern {
		levels[i] = strconv.Itoa(level)
	}

	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{
		Word:        word.Word,
		Reading:     word.Reading,
		Pattern:     strings.Join(levels, ", "),
		Description: word.Description,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// BaseMIMEType drops parameters such as ";codecs=opus".
func BaseMIMEType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base, _, _ := strings.Cut(mimeType, ";")
		return strings.TrimSpace(base)
	}
	return mediaType
}
