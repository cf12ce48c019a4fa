// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package discovery implements the multicast advertisement listener
// (component H): remote compile servers periodically broadcast an
// OSC-style "/faustcompiler" message carrying their pid and hostname;
// this package tracks the set currently considered alive under a
// 3-second liveness TTL, guarded by a mutex since advertisements arrive
// on their own goroutine while ListAlive is polled from elsewhere.
package discovery

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// ErrNoMulticastInterface is returned by NewAgent when no local
// interface both is up and supports multicast.
var ErrNoMulticastInterface = errors.New("discovery: no usable multicast interface found")

// DefaultGroup is the multicast group and port the original remote_DNS
// listener binds.
const DefaultGroup = "224.0.0.1:7770"

// livenessTTL is how long a record is considered alive after its last
// advertisement.
const livenessTTL = 3 * time.Second

// Record is one advertised compile server, decoded from its
// "<name>._<ip>:<port>._<displayName>" hostname encoding.
type Record struct {
	Key         string // advertised hostname + "/" + pid (unique per process)
	Name        string
	IP          string
	Port        int
	DisplayName string
	LastSeen    time.Time
}

// Agent joins the discovery multicast group and maintains the
// mutex-guarded table of currently advertised servers.
type Agent struct {
	pc *ipv4.PacketConn
	uc *net.UDPConn

	mu      sync.Mutex
	records map[string]Record
}

// NewAgent joins groupAddr (host:port, e.g. DefaultGroup) on every
// available multicast-capable interface.
func NewAgent(groupAddr string) (*Agent, error) {
	addr, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, err
	}
	uc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: addr.Port})
	if err != nil {
		return nil, err
	}
	pc := ipv4.NewPacketConn(uc)

	ifaces, err := net.Interfaces()
	if err != nil {
		uc.Close()
		return nil, err
	}
	joined := false
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := pc.JoinGroup(&iface, &net.UDPAddr{IP: addr.IP}); err == nil {
			joined = true
		}
	}
	if !joined {
		uc.Close()
		return nil, ErrNoMulticastInterface
	}

	return &Agent{pc: pc, uc: uc, records: make(map[string]Record)}, nil
}

// Listen blocks, reading advertisements and updating the liveness
// table, until stop is closed or the socket is closed. Call it from its
// own goroutine.
func (a *Agent) Listen(stop <-chan struct{}) error {
	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		a.uc.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := a.uc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		pid, hostname, err := decodeAdvertisement(buf[:n])
		if err != nil {
			continue // malformed advertisement: ignore, keep listening
		}
		rec, err := parseHostname(hostname)
		if err != nil {
			continue
		}
		rec.Key = hostname + "/" + strconv.Itoa(int(pid))
		rec.LastSeen = time.Now()

		a.mu.Lock()
		a.records[rec.Key] = rec
		a.mu.Unlock()
	}
}

// ListAlive returns every record advertised within the last 3 seconds
// of now.
func (a *Agent) ListAlive(now time.Time) []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, 0, len(a.records))
	for _, rec := range a.records {
		if now.Sub(rec.LastSeen) <= livenessTTL {
			out = append(out, rec)
		}
	}
	return out
}

// Close leaves the multicast group and releases the socket.
func (a *Agent) Close() error {
	return a.uc.Close()
}
