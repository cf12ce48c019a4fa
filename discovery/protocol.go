// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// oscAddress is the address pattern every advertisement carries.
const oscAddress = "/faustcompiler"

// decodeAdvertisement parses a minimal OSC message: a null-terminated,
// 4-byte-padded address pattern, a null-terminated, 4-byte-padded type
// tag string, and then one argument per tag. This listener only ever
// expects the "is" signature (one int32 pid, one string hostname), per
// the original remote_DNS pingHandler.
func decodeAdvertisement(buf []byte) (pid int32, hostname string, err error) {
	addr, rest, err := readOSCString(buf)
	if err != nil {
		return 0, "", err
	}
	if addr != oscAddress {
		return 0, "", fmt.Errorf("discovery: unexpected OSC address %q", addr)
	}

	tags, rest, err := readOSCString(rest)
	if err != nil {
		return 0, "", err
	}
	if tags != ",is" {
		return 0, "", fmt.Errorf("discovery: unexpected OSC type tag %q", tags)
	}

	if len(rest) < 4 {
		return 0, "", fmt.Errorf("discovery: truncated OSC int32 argument")
	}
	pid = int32(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]

	hostname, _, err = readOSCString(rest)
	if err != nil {
		return 0, "", err
	}
	return pid, hostname, nil
}

// readOSCString reads one null-terminated string padded to a multiple
// of 4 bytes (the OSC wire convention) from the front of buf, and
// returns the remaining bytes after the padding.
func readOSCString(buf []byte) (s string, rest []byte, err error) {
	nul := -1
	for i, b := range buf {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		return "", nil, fmt.Errorf("discovery: unterminated OSC string")
	}
	s = string(buf[:nul])
	padded := ((nul + 1) + 3) &^ 3
	if padded > len(buf) {
		return "", nil, fmt.Errorf("discovery: truncated OSC string padding")
	}
	return s, buf[padded:], nil
}

// parseHostname decodes the "<name>._<ip>:<port>._<displayName>"
// encoding the original getRemoteMachinesAvailable expects.
func parseHostname(hostname string) (Record, error) {
	parts := strings.SplitN(hostname, "._", 3)
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("discovery: malformed hostname %q", hostname)
	}
	name := parts[0]
	ipPort := parts[1]
	displayName := parts[2]

	idx := strings.LastIndex(ipPort, ":")
	if idx < 0 {
		return Record{}, fmt.Errorf("discovery: malformed ip:port %q", ipPort)
	}
	ip := ipPort[:idx]
	port, err := strconv.Atoi(ipPort[idx+1:])
	if err != nil {
		return Record{}, fmt.Errorf("discovery: malformed port in %q: %w", ipPort, err)
	}

	return Record{Name: name, IP: ip, Port: port, DisplayName: displayName}, nil
}
