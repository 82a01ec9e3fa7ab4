// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// This file is home to the root 'p2p' package's mlog lines: connection and
// ban lifecycle events an operator watches alongside the discovery package's
// own mlog catalogue.

package p2p

import "github.com/xdagj/xdagj-p2p-go/logger"

var mlogServer = logger.MLogRegisterAvailable("server", mServerLogLines)

var mServerLogLines = []logger.MLogT{
	mlogServerPeerAdded,
	mlogServerPeerRemove,
	mlogServerPeerDuplicate,
	mlogServerBanApplied,
}

// mlogServerPeerAdded is sent once for every peer that completes the
// handshake and is adopted into the connection manager's peer table.
var mlogServerPeerAdded = logger.MLogT{
	Description: "Called when a peer completes the handshake and is added to the connection manager.",
	Receiver:    "SERVER",
	Verb:        "ADD",
	Subject:     "PEER",
	Details: []logger.MLogDetailT{
		{Owner: "PEER", Key: "ID", Value: "STRING"},
		{Owner: "PEER", Key: "REMOTE_ADDRESS", Value: "STRING"},
		{Owner: "SERVER", Key: "PEER_COUNT", Value: "INT"},
	},
}

// mlogServerPeerRemove is sent once for every peer session that closes.
var mlogServerPeerRemove = logger.MLogT{
	Description: "Called when a peer session closes for any reason.",
	Receiver:    "SERVER",
	Verb:        "REMOVE",
	Subject:     "PEER",
	Details: []logger.MLogDetailT{
		{Owner: "PEER", Key: "ID", Value: "STRING"},
		{Owner: "PEER", Key: "REASON", Value: "STRING"},
		{Owner: "SERVER", Key: "PEER_COUNT", Value: "INT"},
	},
}

// mlogServerPeerDuplicate is sent when a newly handshaken session is
// dropped because another session for the same node id already exists.
var mlogServerPeerDuplicate = logger.MLogT{
	Description: "Called when a new session is closed for duplicating an already-established peer.",
	Receiver:    "SERVER",
	Verb:        "SUPPRESS",
	Subject:     "DUPLICATE_PEER",
	Details: []logger.MLogDetailT{
		{Owner: "PEER", Key: "ID", Value: "STRING"},
	},
}

// mlogServerBanApplied is sent whenever the ban store records a new ban.
var mlogServerBanApplied = logger.MLogT{
	Description: "Called when an IP address is banned.",
	Receiver:    "SERVER",
	Verb:        "APPLY",
	Subject:     "BAN",
	Details: []logger.MLogDetailT{
		{Owner: "BAN", Key: "IP", Value: "STRING"},
		{Owner: "BAN", Key: "REASON", Value: "STRING"},
		{Owner: "BAN", Key: "OFFENSE_COUNT", Value: "INT"},
	},
}
