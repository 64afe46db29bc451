package monitor

import (
	"strconv"
	"strings"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// parseHexDump parses the monitor's "xp" human-monitor-command output,
// lines of the form "0000000040000000: 0xde 0xad 0xbe 0xef", and returns
// the first want bytes found across all lines in order.
func parseHexDump(text string, want int) ([]byte, error) {
	out := make([]byte, 0, want)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ":"); idx >= 0 {
			line = line[idx+1:]
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.TrimPrefix(tok, "0x")
			v, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				continue
			}
			out = append(out, byte(v))
			if len(out) == want {
				return out, nil
			}
		}
	}
	if len(out) < want {
		return nil, apperr.New(apperr.Protocol, "hex dump shorter than requested size")
	}
	return out, nil
}
