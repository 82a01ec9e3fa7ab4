// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// xdagnode is a thin illustrative entry point wiring the p2p façade to a
// set of command-line flags. It owns none of the core engineering: it
// parses flags, builds a p2p.Config, and calls Start/Stop. The command-line
// parsing, signal handling and any DNS-based discovery path are explicitly
// out of scope for this module (see spec §1); this file exists only so the
// package is runnable end to end.
package main

import (
	"crypto/ecdsa"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/logger/glog"
	"github.com/xdagj/xdagj-p2p-go/p2p"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

var (
	listenPort     = flag.Int("port", 30303, "TCP+UDP listen port")
	networkID      = flag.Int("networkid", 1, "network id byte, rejected during handshake if peers differ")
	networkVersion = flag.Int("networkversion", 1, "network protocol version, rejected during handshake if peers differ")
	minConns       = flag.Int("minconns", p2p.DefaultMinConnections, "minimum number of live peer connections to maintain")
	maxConns       = flag.Int("maxconns", p2p.DefaultMaxConnections, "maximum number of live peer connections to allow")
	seedNodes      = flag.String("seednodes", "", "comma-separated host:port list contacted on bootstrap")
	trustNodes     = flag.String("trustnodes", "", "comma-separated IPs that are never banned or randomly evicted")
	enableDiscover = flag.Bool("discovery", true, "enable UDP Kademlia discovery")
	enableCompress = flag.Bool("compress", true, "enable Snappy frame compression")
	dataDir        = flag.String("datadir", "./xdagnode-data", "directory for persisted reputation scores")
	nodeKeyFile    = flag.String("nodekey", "", "private key filename")
	nodeKeyHex     = flag.String("nodekeyhex", "", "private key as hex (for testing)")
	genKey         = flag.String("genkey", "", "generate a node key, write it to the given file, and quit")
)

func onlyDoGenKey(path string) {
	key, err := crypto.GenerateKey()
	if err != nil {
		glog.Fatalf("could not generate key: %s", err)
	}
	f, err := os.Create(path)
	if err != nil {
		glog.Fatalf("could not open genkey file: %v", err)
	}
	defer f.Close()
	if _, err := crypto.WriteECDSAKey(f, key); err != nil {
		glog.Fatal(err)
	}
	os.Exit(0)
}

func loadNodeKey() *ecdsa.PrivateKey {
	switch {
	case *nodeKeyFile == "" && *nodeKeyHex == "":
		return nil // NewService generates an ephemeral key (test/demo only).
	case *nodeKeyFile != "" && *nodeKeyHex != "":
		glog.Fatal("options -nodekey and -nodekeyhex are mutually exclusive")
	case *nodeKeyFile != "":
		f, err := os.Open(*nodeKeyFile)
		if err != nil {
			glog.Fatalf("error opening node key file: %v", err)
		}
		defer f.Close()
		key, err := crypto.LoadECDSA(f)
		if err != nil {
			glog.Fatalf("nodekey: %s", err)
		}
		return key
	case *nodeKeyHex != "":
		key, err := crypto.HexToECDSA(*nodeKeyHex)
		if err != nil {
			glog.Fatalf("nodekeyhex: %s", err)
		}
		return key
	}
	return nil
}

func parseEndpoints(csv string) []enode.Endpoint {
	if csv == "" {
		return nil
	}
	var out []enode.Endpoint
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(item)
		if err != nil {
			glog.Errorf("seednodes: skipping malformed endpoint %q: %s", item, err)
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			glog.Errorf("seednodes: skipping endpoint %q with non-numeric port: %s", item, err)
			continue
		}
		ip := net.ParseIP(host)
		if ip == nil {
			addrs, err := net.LookupIP(host)
			if err != nil || len(addrs) == 0 {
				glog.Errorf("seednodes: could not resolve %q, skipping", host)
				continue
			}
			ip = addrs[0]
		}
		out = append(out, enode.Endpoint{IP: ip, TCPPort: uint16(port), UDPPort: uint16(port)})
	}
	return out
}

func parseTrustIPs(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(csv, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	flag.Var(glog.GetVerbosity(), "verbosity", "log verbosity (0-9)")
	flag.Var(glog.GetVModule(), "vmodule", "log verbosity pattern")
	glog.SetToStderr(true)
	flag.Parse()

	if *genKey != "" {
		onlyDoGenKey(*genKey)
	}

	cfg := p2p.Config{
		Port:                   *listenPort,
		NetworkID:              byte(*networkID),
		NetworkVersion:         uint16(*networkVersion),
		MinConnections:         *minConns,
		MaxConnections:         *maxConns,
		SeedNodes:              parseEndpoints(*seedNodes),
		TrustNodes:             parseTrustIPs(*trustNodes),
		NodeKey:                loadNodeKey(),
		EnableFrameCompression: *enableCompress,
		EnableDiscovery:        *enableDiscover,
		DataDir:                *dataDir,
		ClientID:               "xdagnode",
	}

	svc, err := p2p.NewService(cfg)
	if err != nil {
		glog.Fatalf("p2p: construct service: %s", err)
	}
	svc.OnConnect(func(p *p2p.Peer) {
		glog.V(0).Infof("peer connected: %s (%s)", p.NodeID, p.Remote)
	})
	svc.OnDisconnect(func(p *p2p.Peer) {
		glog.V(0).Infof("peer disconnected: %s", p.NodeID)
	})

	if err := svc.Start(); err != nil {
		glog.Fatalf("p2p: start: %s", err)
	}
	fmt.Fprintf(os.Stderr, "xdagnode: listening on port %d, self=%s\n", cfg.Port, svc.Self())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	svc.Stop()
}
