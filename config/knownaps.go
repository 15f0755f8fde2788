package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/porcej/njord/arbiter"
)

// APIUser is the router login carried by the known access point document.
type APIUser struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// KnownAPs is the JSON document listing access points with surveyed
// positions. LastUpdated is a Unix timestamp.
type KnownAPs struct {
	LastUpdated  int64                 `json:"LastUpdated"`
	APIUser      APIUser               `json:"ApiUser"`
	AccessPoints []arbiter.AccessPoint `json:"KnownAps"`
}

// UpdatedAt returns LastUpdated as a time.
func (k *KnownAPs) UpdatedAt() time.Time {
	return time.Unix(k.LastUpdated, 0).UTC()
}

// Table builds the lookup table of the document.
func (k *KnownAPs) Table() *arbiter.Table {
	return arbiter.NewTable(k.AccessPoints)
}

// LoadKnownAPs reads the document at path. A missing file yields an
// empty document: the buoy then runs on GNSS alone.
func LoadKnownAPs(path string) (*KnownAPs, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &KnownAPs{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeKnownAPs(b)
}

func decodeKnownAPs(b []byte) (*KnownAPs, error) {
	var doc KnownAPs
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("error decoding known access points: %w", err)
	}
	for i, ap := range doc.AccessPoints {
		if ap.SSID == "" || ap.BSSID == "" {
			return nil, fmt.Errorf("known access point %d needs Ssid and Bssid", i)
		}
	}
	return &doc, nil
}

// DownloadIfNewer fetches the document at url and, when it is newer than
// current, writes it to path. It reports whether path was replaced.
func DownloadIfNewer(ctx context.Context, client *http.Client, url, path string, current *KnownAPs) (*KnownAPs, bool, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("known access point download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("known access point download failed: unexpected status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	remote, err := decodeKnownAPs(b)
	if err != nil {
		return nil, false, err
	}

	if current != nil && remote.LastUpdated <= current.LastUpdated {
		return current, false, nil
	}
	if err := writeFileAtomic(path, b); err != nil {
		return nil, false, fmt.Errorf("error writing known access points: %w", err)
	}
	return remote, true, nil
}

func writeFileAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".knownaps-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
