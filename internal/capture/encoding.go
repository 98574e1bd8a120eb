package capture

import (
	"context"
	"errors"
	"fmt"

	"accentcoach/internal/audio"
	"accentcoach/internal/ports"
)

// DefaultPreferences is the encoding preference order, most preferred first.
var DefaultPreferences = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/aac",
}

// SelectEncoding returns the first preference the prober accepts. Without a usable capability
// query it falls back to WAV; when the prober rejects every preference and WAV too it fails
// with ErrNoSupportedEncoding.
func SelectEncoding(ctx context.Context, prober ports.EncodingProber, preferences []string) (string, error) {
	if prober == nil {
		return audio.MIMETypeWAV, nil
	}

	for _, mimeType := range preferences {
		ok, err := prober.Supports(ctx, mimeType)
		if err != nil {
			if errors.Is(err, ports.ErrProbeUnavailable) {
				return audio.MIMETypeWAV, nil
			}
			return "", err
		}
		if ok {
			return mimeType, nil
		}
	}

	ok, err := prober.Supports(ctx, audio.MIMETypeWAV)
	if err != nil && !errors.Is(err, ports.ErrProbeUnavailable) {
		return "", err
	}
	if err == nil && !ok {
		return "", fmt.Errorf("%w: tried %v and %s", ErrNoSupportedEncoding, preferences, audio.MIMETypeWAV)
	}
	return audio.MIMETypeWAV, nil
}
