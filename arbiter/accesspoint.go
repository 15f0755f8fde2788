package arbiter

import "strings"

// AccessPoint is a WiFi access point whose location is known.
type AccessPoint struct {
	SSID        string  `json:"Ssid"`
	BSSID       string  `json:"Bssid"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
	Description string  `json:"LocationDescription"`
}

// Table groups known access points by SSID. SSIDs keep the order in
// which they first appear, which is also the order they are searched in.
type Table struct {
	ssids  []string
	bySSID map[string][]AccessPoint
}

// NewTable builds a table from aps.
func NewTable(aps []AccessPoint) *Table {
	t := &Table{bySSID: make(map[string][]AccessPoint)}
	for _, ap := range aps {
		if _, ok := t.bySSID[ap.SSID]; !ok {
			t.ssids = append(t.ssids, ap.SSID)
		}
		t.bySSID[ap.SSID] = append(t.bySSID[ap.SSID], ap)
	}
	return t
}

// SSIDs returns the configured network names in search order.
func (t *Table) SSIDs() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.ssids...)
}

// Len returns the number of access points.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, aps := range t.bySSID {
		n += len(aps)
	}
	return n
}

// All returns every access point, grouped by SSID in search order.
func (t *Table) All() []AccessPoint {
	if t == nil {
		return nil
	}
	all := make([]AccessPoint, 0, t.Len())
	for _, ssid := range t.ssids {
		all = append(all, t.bySSID[ssid]...)
	}
	return all
}

// Lookup finds the access point of network ssid with the given BSSID.
// BSSIDs compare case-insensitively; when a BSSID is listed twice the
// later entry wins.
func (t *Table) Lookup(ssid, bssid string) (AccessPoint, bool) {
	if t == nil {
		return AccessPoint{}, false
	}
	var found AccessPoint
	ok := false
	for _, ap := range t.bySSID[ssid] {
		if strings.EqualFold(ap.BSSID, bssid) {
			found, ok = ap, true
		}
	}
	return found, ok
}
