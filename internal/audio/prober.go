package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"accentcoach/internal/ports"
)

// FFMPEGProber answers encoding capability queries from `ffmpeg -muxers` and `ffmpeg -encoders`.
// The listings are read once and cached.
type FFMPEGProber struct {
	command string

	once     sync.Once
	muxers   map[string]bool
	encoders map[string]bool
	err      error
}

func NewFFMPEGProber(command string) *FFMPEGProber {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGProber{command: command}
}

func (p *FFMPEGProber) Supports(ctx context.Context, mimeType string) (bool, error) {
	p.once.Do(func() {
		p.muxers, p.err = p.list(ctx, "-muxers")
		if p.err != nil {
			return
		}
		p.encoders, p.err = p.list(ctx, "-encoders")
	})
	if p.err != nil {
		return false, p.err
	}

	format, err := LookupFormat(mimeType)
	if err != nil {
		return false, nil
	}
	if !p.muxers[format.Muxer] {
		return false, nil
	}
	return format.Encoder == "" || p.encoders[format.Encoder], nil
}

func (p *FFMPEGProber) list(ctx context.Context, flag string) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, p.command, "-hide_banner", flag).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ports.ErrProbeUnavailable, p.command, flag, err)
	}
	return parseListing(out), nil
}

// parseListing reads the name column of an ffmpeg capability table. Rows start after the
// "--" separator line; the first column holds flags and the second a comma separated name list.
func parseListing(out []byte) map[string]bool {
	names := make(map[string]bool)
	started := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			if strings.HasPrefix(line, "--") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			names[name] = true
		}
	}
	return names
}
