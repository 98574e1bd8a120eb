package audio

import (
	"errors"
	"fmt"
)

// MIMETypeWAV is the fallback encoding. It is produced from raw PCM and needs no ffmpeg encoder.
const MIMETypeWAV = "audio/wav"

var ErrUnsupportedFormat = errors.New("unsupported recording format")

// Format maps a recording MIME type onto ffmpeg output settings.
type Format struct {
	MIMEType  string
	Muxer     string
	Encoder   string
	ExtraArgs []string
	// RawPCM formats are captured as s16le and wrapped in a RIFF header after capture.
	RawPCM bool
}

var formats = []Format{
	{MIMEType: "audio/webm;codecs=opus", Muxer: "webm", Encoder: "libopus"},
	{MIMEType: "audio/webm", Muxer: "webm", Encoder: "libvorbis"},
	{MIMEType: "audio/mp4", Muxer: "mp4", Encoder: "aac", ExtraArgs: []string{"-movflags", "frag_keyframe+empty_moov"}},
	{MIMEType: "audio/aac", Muxer: "adts", Encoder: "aac"},
	{MIMEType: MIMETypeWAV, Muxer: "s16le", RawPCM: true},
}

// LookupFormat returns the ffmpeg settings for mimeType.
func LookupFormat(mimeType string) (Format, error) {
	if mimeType == "" {
		mimeType = MIMETypeWAV
	}
	for _, f := range formats {
		if f.MIMEType == mimeType {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
}

func (f Format) outputArgs() []string {
	var args []string
	if f.Encoder != "" {
		args = append(args, "-c:a", f.Encoder)
	}
	args = append(args, f.ExtraArgs...)
	return append(args, "-f", f.Muxer, "-")
}
