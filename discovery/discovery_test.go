// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func padOSCString(s string) []byte {
	buf := append([]byte(s), 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func buildAdvertisement(t *testing.T, pid int32, hostname string) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, padOSCString(oscAddress)...)
	buf = append(buf, padOSCString(",is")...)
	pidBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(pidBuf, uint32(pid))
	buf = append(buf, pidBuf...)
	buf = append(buf, padOSCString(hostname)...)
	return buf
}

func TestDecodeAdvertisementRoundTrip(t *testing.T) {
	raw := buildAdvertisement(t, 4242, "faustd._10.0.0.5:7777._My_Compiler")
	pid, hostname, err := decodeAdvertisement(raw)
	require.NoError(t, err)
	require.Equal(t, int32(4242), pid)
	require.Equal(t, "faustd._10.0.0.5:7777._My_Compiler", hostname)
}

func TestParseHostname(t *testing.T) {
	rec, err := parseHostname("faustd._10.0.0.5:7777._My_Compiler")
	require.NoError(t, err)
	require.Equal(t, "faustd", rec.Name)
	require.Equal(t, "10.0.0.5", rec.IP)
	require.Equal(t, 7777, rec.Port)
	require.Equal(t, "My_Compiler", rec.DisplayName)
}

func TestParseHostnameMalformed(t *testing.T) {
	_, err := parseHostname("not-a-valid-hostname")
	require.Error(t, err)
}

// liveness scenario: a record advertised just under 3 seconds ago is
// alive; one advertised just over 3 seconds ago is not.
func TestListAliveTTL(t *testing.T) {
	a := &Agent{records: map[string]Record{}}
	now := time.Now()
	a.records["fresh"] = Record{Key: "fresh", LastSeen: now.Add(-2 * time.Second)}
	a.records["stale"] = Record{Key: "stale", LastSeen: now.Add(-4 * time.Second)}

	alive := a.ListAlive(now)
	require.Len(t, alive, 1)
	require.Equal(t, "fresh", alive[0].Key)
}
