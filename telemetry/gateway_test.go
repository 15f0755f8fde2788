package telemetry

import (
	"errors"
	"strings"
	"testing"
)

func TestParseProcRoute(t *testing.T) {
	table := `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
eth0	0001A8C0	00000000	0001	0	0	0	00FFFFFF	0	0	0
eth0	00000000	0101A8C0	0003	0	0	100	00000000	0	0	0
`
	ip, err := parseProcRoute(strings.NewReader(table))
	if err != nil {
		t.Fatalf("parseProcRoute() returned error: %v", err)
	}
	if ip.String() != "192.168.1.1" {
		t.Errorf("parseProcRoute() = %v, want 192.168.1.1", ip)
	}
}

func TestParseProcRouteNoGateway(t *testing.T) {
	table := `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
eth0	0001A8C0	00000000	0001	0	0	0	00FFFFFF	0	0	0
`
	if _, err := parseProcRoute(strings.NewReader(table)); !errors.Is(err, ErrGatewayNotFound) {
		t.Errorf("parseProcRoute() error = %v, want %v", err, ErrGatewayNotFound)
	}
}

func TestParseNetstat(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected string
	}{
		{
			name: "macOS",
			output: `Routing tables

Internet:
Destination        Gateway            Flags        Netif Expire
default            10.0.0.1           UGScg          en0
127                127.0.0.1          UCS            lo0
`,
			expected: "10.0.0.1",
		},
		{
			name: "Linux",
			output: `Kernel IP routing table
Destination     Gateway         Genmask         Flags   MSS Window  irtt Iface
0.0.0.0         192.168.13.31   0.0.0.0         UG        0 0          0 wlan0
192.168.13.0    0.0.0.0         255.255.255.0   U         0 0          0 wlan0
`,
			expected: "192.168.13.31",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, err := parseNetstat(strings.NewReader(tt.output))
			if err != nil {
				t.Fatalf("parseNetstat() returned error: %v", err)
			}
			if ip.String() != tt.expected {
				t.Errorf("parseNetstat() = %v, want %v", ip, tt.expected)
			}
		})
	}
}
