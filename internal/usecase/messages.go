package usecase

import (
	"errors"
	"fmt"
	"strings"

	"accentcoach/internal/capture"
	"accentcoach/internal/grading"
)

const (
	messageEmptyCapture  = "녹음된 소리가 없습니다. 다시 녹음해주세요."
	messageTooShort      = "녹음이 너무 짧습니다. 조금 더 길게 발음해주세요."
	messageNoEncoding    = "이 환경에서 지원되는 녹음 형식이 없습니다."
	messageStopFailed    = "녹음을 깔끔하게 종료하지 못했습니다."
	messageCaptureFailed = "녹음 처리 중 오류가 발생했습니다."
)

func microphoneMessage(err error) string {
	if errors.Is(err, capture.ErrNoSupportedEncoding) {
		return messageNoEncoding
	}
	detail := strings.TrimPrefix(err.Error(), capture.ErrPermissionDenied.Error()+": ")
	return fmt.Sprintf("마이크 오류: %s. 권한을 확인해주세요.", detail)
}

func gradingMessage(err error) string {
	var failed *grading.FailedError
	if errors.As(err, &failed) {
		return fmt.Sprintf("분석 실패: %s", failed.Reason())
	}
	return fmt.Sprintf("분석 실패: %s", err.Error())
}
