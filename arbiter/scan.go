package arbiter

import (
	"fmt"
	"strings"
)

// ScanEntry is one access point block of a WiFi scan, as Key: Value pairs.
type ScanEntry map[string]string

// BSSID returns the hardware address of the scanned access point.
func (e ScanEntry) BSSID() string { return e["BSSID"] }

// ParseScan splits router scan text into blank-line separated blocks of
// "Key: Value" lines. A line without a colon, or a block without a BSSID,
// fails the whole scan.
func ParseScan(text string) ([]ScanEntry, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}

	var entries []ScanEntry
	for i, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		entry := make(ScanEntry)
		for _, line := range strings.Split(block, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("%w: block %d: line %q is not Key: Value", ErrMalformedScan, i+1, line)
			}
			entry[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		if entry.BSSID() == "" {
			return nil, fmt.Errorf("%w: block %d has no BSSID", ErrMalformedScan, i+1)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
