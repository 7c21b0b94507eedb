package detect

import (
	"fmt"
	"strings"

	"github.com/Sriram-PR/review-scraper/pkg/config"
)

// Verdict is the block detector's classification of a response
type Verdict string

const (
	VerdictAllowed Verdict = "allowed"
	VerdictBlocked Verdict = "blocked"
)

// Blocked reports whether the verdict is VerdictBlocked
func (v Verdict) Blocked() bool {
	return v == VerdictBlocked
}

// BlockDetector decides whether a response is an anti-bot block page.
// It holds no state beyond its configuration and is safe for concurrent use.
type BlockDetector struct {
	statusCodes   map[int]struct{}
	signatures    []string // lowercased
	contentMarker string
	minBodyLength int
}

// NewBlockDetector builds a detector from the detection config
func NewBlockDetector(cfg config.DetectionConfig) *BlockDetector {
	d := &BlockDetector{
		statusCodes:   make(map[int]struct{}, len(cfg.BlockStatusCodes)),
		contentMarker: cfg.ContentMarker,
		minBodyLength: cfg.MinBodyLength,
	}
	for _, code := range cfg.BlockStatusCodes {
		d.statusCodes[code] = struct{}{}
	}
	for _, sig := range cfg.Signatures {
		if sig = strings.TrimSpace(sig); sig != "" {
			d.signatures = append(d.signatures, strings.ToLower(sig))
		}
	}
	return d
}

// Classify returns the verdict for a received response.
// Transport failures never reach the detector.
func (d *BlockDetector) Classify(status int, body string) Verdict {
	v, _ := d.Explain(status, body)
	return v
}

// Explain is Classify plus a short human-readable reason for logging
func (d *BlockDetector) Explain(status int, body string) (Verdict, string) {
	if _, ok := d.statusCodes[status]; ok {
		return VerdictBlocked, fmt.Sprintf("status %d", status)
	}

	lower := strings.ToLower(body)
	for _, sig := range d.signatures {
		if strings.Contains(lower, sig) {
			return VerdictBlocked, fmt.Sprintf("signature %q", sig)
		}
	}

	// Lengths are in bytes, matching what the transport delivered
	if len(body) < d.minBodyLength && (d.contentMarker == "" || !strings.Contains(body, d.contentMarker)) {
		return VerdictBlocked, fmt.Sprintf("short body (%d bytes) without content marker", len(body))
	}

	return VerdictAllowed, ""
}
