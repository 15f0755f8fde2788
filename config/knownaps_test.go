package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const knownAPsJSON = `{
  "LastUpdated": 1717000000,
  "ApiUser": {"Username": "user", "Password": "12345"},
  "KnownAps": [
    {"Ssid": "Marina", "Bssid": "aa:bb:cc:00:00:01", "Latitude": 44.6488, "Longitude": -63.5752, "LocationDescription": "fuel dock"},
    {"Ssid": "Yard", "Bssid": "dd:ee:ff:00:00:01", "Latitude": 44.7, "Longitude": -63.6}
  ]
}`

func TestLoadKnownAPs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(knownAPsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadKnownAPs(path)
	if err != nil {
		t.Fatalf("LoadKnownAPs() error: %v", err)
	}
	if doc.APIUser.Username != "user" || doc.APIUser.Password != "12345" {
		t.Errorf("api user=%+v", doc.APIUser)
	}
	if doc.UpdatedAt().Unix() != 1717000000 {
		t.Errorf("updated=%v", doc.UpdatedAt())
	}
	table := doc.Table()
	if table.Len() != 2 {
		t.Fatalf("table len=%d want 2", table.Len())
	}
	ap, ok := table.Lookup("Marina", "AA:BB:CC:00:00:01")
	if !ok || ap.Description != "fuel dock" {
		t.Errorf("lookup=%+v, %v", ap, ok)
	}
}

func TestLoadKnownAPs_MissingFile(t *testing.T) {
	doc, err := LoadKnownAPs(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadKnownAPs() error: %v", err)
	}
	if doc.Table().Len() != 0 {
		t.Errorf("expected empty table")
	}
}

func TestLoadKnownAPs_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"KnownAps":[{"Ssid":"x"}]}`), 0o644)
	if _, err := LoadKnownAPs(path); err == nil {
		t.Fatal("expected error for access point without Bssid")
	}
}

func TestDownloadIfNewer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(knownAPsJSON))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	ctx := context.Background()

	doc, replaced, err := DownloadIfNewer(ctx, srv.Client(), srv.URL, path, &KnownAPs{LastUpdated: 1})
	if err != nil || !replaced {
		t.Fatalf("first download: replaced=%v err=%v", replaced, err)
	}
	if doc.LastUpdated != 1717000000 {
		t.Errorf("LastUpdated=%d", doc.LastUpdated)
	}
	if onDisk, err := LoadKnownAPs(path); err != nil || onDisk.Table().Len() != 2 {
		t.Fatalf("written file: %v, %v", onDisk, err)
	}

	current := &KnownAPs{LastUpdated: 1717000000}
	doc, replaced, err = DownloadIfNewer(ctx, srv.Client(), srv.URL, path, current)
	if err != nil || replaced || doc != current {
		t.Errorf("same timestamp should keep current: replaced=%v err=%v", replaced, err)
	}
}

func TestDownloadIfNewer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	if _, _, err := DownloadIfNewer(context.Background(), nil, srv.URL, path, nil); err == nil {
		t.Fatal("expected error on 404")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file written despite failed download")
	}
}
