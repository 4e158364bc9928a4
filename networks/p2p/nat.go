// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// NAT traversal for the P2P listener, following the teacher's
// networks/p2p/nat.Parse/cfg.NAT convention (cmd/utils/flags.go's setNAT)
// generalized into a small in-package helper since port-mapping is this
// node's only NAT concern (no UDP discovery to punch through for).
package p2p

import (
	"fmt"
	"net"
	"strings"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/agrichain/harvestnode/log"
)

var natLogger = log.NewModuleLogger(log.ModuleP2P)

// NAT maps a local port to an externally reachable one.
type NAT interface {
	AddMapping(protocol string, extPort, intPort int, name string, lifetime time.Duration) error
	ExternalIP() (net.IP, error)
}

// ParseNAT parses a NAT spec as accepted by spec.md's configuration surface:
// "none" (default, no traversal attempted) or "pmp" (NAT-PMP via the
// gateway address the OS reports).
func ParseNAT(spec string) (NAT, error) {
	switch strings.ToLower(spec) {
	case "", "none":
		return nil, nil
	case "pmp":
		gw, err := defaultGateway()
		if err != nil {
			return nil, fmt.Errorf("p2p: could not determine default gateway for NAT-PMP: %w", err)
		}
		return &pmpNAT{client: natpmp.NewClient(gw)}, nil
	default:
		return nil, fmt.Errorf("p2p: unknown NAT spec %q", spec)
	}
}

type pmpNAT struct {
	client *natpmp.Client
}

func (n *pmpNAT) AddMapping(protocol string, extPort, intPort int, name string, lifetime time.Duration) error {
	_, err := n.client.AddPortMapping(protocol, intPort, extPort, int(lifetime.Seconds()))
	return err
}

func (n *pmpNAT) ExternalIP() (net.IP, error) {
	resp, err := n.client.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	ip := net.IP(resp.ExternalIPAddress[:])
	return ip, nil
}

// defaultGateway guesses the LAN gateway by taking the first byte-3-zeroed
// address of the host's first non-loopback interface, the same heuristic
// jackpal/go-nat-pmp's own examples use absent an OS-level route lookup.
func defaultGateway() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		gw := make(net.IP, 4)
		copy(gw, ip4)
		gw[3] = 1
		return gw, nil
	}
	return nil, fmt.Errorf("p2p: no usable network interface found")
}

// mapPort runs AddMapping once and logs the outcome; failures are
// non-fatal, matching spec.md §7's recovery policy of "nothing is surfaced
// beyond a log entry" for non-persistence errors.
func mapPort(n NAT, protocol string, port int) {
	if n == nil {
		return
	}
	if err := n.AddMapping(protocol, port, port, "harvestnode", 2*time.Hour); err != nil {
		natLogger.Warn("NAT port mapping failed", "port", port, "err", err)
		return
	}
	natLogger.Info("NAT port mapping established", "port", port)
}
