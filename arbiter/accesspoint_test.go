package arbiter

import (
	"reflect"
	"testing"
)

func TestTableOrderAndLookup(t *testing.T) {
	table := NewTable([]AccessPoint{
		{SSID: "Harbor", BSSID: "aa:00", Latitude: 1},
		{SSID: "Dock", BSSID: "bb:00", Latitude: 2},
		{SSID: "Harbor", BSSID: "aa:01", Latitude: 3},
		{SSID: "Harbor", BSSID: "AA:00", Latitude: 4},
	})

	if got, want := table.SSIDs(), []string{"Harbor", "Dock"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SSIDs() = %v, want %v", got, want)
	}
	if table.Len() != 4 {
		t.Errorf("Len() = %d, want 4", table.Len())
	}
	if all := table.All(); all[3].SSID != "Dock" {
		t.Errorf("All() not grouped by SSID: %+v", all)
	}

	ap, ok := table.Lookup("Harbor", "aa:00")
	if !ok || ap.Latitude != 4 {
		t.Errorf("Lookup duplicate = %+v, %v; want later entry", ap, ok)
	}
	if _, ok := table.Lookup("Dock", "aa:01"); ok {
		t.Error("Lookup matched a BSSID under the wrong SSID")
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if table.Len() != 0 || table.SSIDs() != nil || table.All() != nil {
		t.Error("nil table should be empty")
	}
	if _, ok := table.Lookup("x", "y"); ok {
		t.Error("nil table lookup should fail")
	}
}
