package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const rtfGateway = 0x2

// DefaultGateway finds the IPv4 default gateway, first from the Linux
// routing table and then from netstat output.
func DefaultGateway(ctx context.Context) (net.IP, error) {
	if f, err := os.Open("/proc/net/route"); err == nil {
		defer f.Close()
		if ip, err := parseProcRoute(f); err == nil {
			return ip, nil
		}
	}

	out, err := exec.CommandContext(ctx, "netstat", "-nr").Output()
	if err != nil {
		return nil, ErrGatewayNotFound
	}
	return parseNetstat(bytes.NewReader(out))
}

// parseProcRoute reads /proc/net/route, where addresses are little endian hex.
func parseProcRoute(r io.Reader) (net.IP, error) {
	scanner := bufio.NewScanner(r)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[1] != "00000000" {
			continue
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil || flags&rtfGateway == 0 {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, binary.LittleEndian.Uint32(raw))
		return ip, nil
	}
	return nil, ErrGatewayNotFound
}

// parseNetstat reads `netstat -nr` output as printed on Linux and macOS.
func parseNetstat(r io.Reader) (net.IP, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || (fields[0] != "default" && fields[0] != "0.0.0.0") {
			continue
		}
		if ip := net.ParseIP(fields[1]).To4(); ip != nil {
			return ip, nil
		}
	}
	return nil, ErrGatewayNotFound
}
