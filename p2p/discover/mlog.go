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

// This file is home to the 'discover' package's mlog lines. All available
// mlog lines are established here as variables and documented.

package discover

import "github.com/xdagj/xdagj-p2p-go/logger"

var mlogDiscover = logger.MLogRegisterAvailable("discover", mLogLines)

var mLogLines = []logger.MLogT{
	mlogPingHandleFrom,
	mlogPongHandleFrom,
	mlogFindNodeHandleFrom,
	mlogFindNodeSendNeighbors,
	mlogNeighborsHandleFrom,
	mlogLookupRound,
	mlogBootstrap,
}

// mlogPingHandleFrom is sent once for each ping request handled.
var mlogPingHandleFrom = logger.MLogT{
	Description: "Called once for each ping request received from a node.",
	Receiver:    "PING",
	Verb:        "HANDLE",
	Subject:     "FROM",
	Details: []logger.MLogDetailT{
		{Owner: "FROM", Key: "UDP_ADDRESS", Value: "STRING"},
		{Owner: "FROM", Key: "ID", Value: "STRING"},
	},
}

// mlogPongHandleFrom is sent once for each pong received.
var mlogPongHandleFrom = logger.MLogT{
	Description: "Called once for each pong received from a node.",
	Receiver:    "PONG",
	Verb:        "HANDLE",
	Subject:     "FROM",
	Details: []logger.MLogDetailT{
		{Owner: "FROM", Key: "UDP_ADDRESS", Value: "STRING"},
		{Owner: "FROM", Key: "ID", Value: "STRING"},
	},
}

// mlogFindNodeHandleFrom is sent once for each find_node request handled.
var mlogFindNodeHandleFrom = logger.MLogT{
	Description: "Called once for each find_node request received from a node.",
	Receiver:    "FIND_NODE",
	Verb:        "HANDLE",
	Subject:     "FROM",
	Details: []logger.MLogDetailT{
		{Owner: "FROM", Key: "UDP_ADDRESS", Value: "STRING"},
		{Owner: "FROM", Key: "ID", Value: "STRING"},
	},
}

// mlogFindNodeSendNeighbors is sent once for each neighbors reply sent.
var mlogFindNodeSendNeighbors = logger.MLogT{
	Description: "Called once for each neighbors reply sent in response to find_node.",
	Receiver:    "FIND_NODE",
	Verb:        "SEND",
	Subject:     "NEIGHBORS",
	Details: []logger.MLogDetailT{
		{Owner: "FIND_NODE", Key: "UDP_ADDRESS", Value: "STRING"},
		{Owner: "FIND_NODE", Key: "ID", Value: "STRING"},
		{Owner: "NEIGHBORS", Key: "NODES_LEN", Value: "INT"},
	},
}

// mlogNeighborsHandleFrom is sent once for each neighbors reply received.
var mlogNeighborsHandleFrom = logger.MLogT{
	Description: "Called once for each neighbors reply received from a node.",
	Receiver:    "NEIGHBORS",
	Verb:        "HANDLE",
	Subject:     "FROM",
	Details: []logger.MLogDetailT{
		{Owner: "FROM", Key: "UDP_ADDRESS", Value: "STRING"},
		{Owner: "FROM", Key: "ID", Value: "STRING"},
		{Owner: "NEIGHBORS", Key: "NODES_LEN", Value: "INT"},
	},
}

// mlogLookupRound is sent once per round of an iterative lookup.
var mlogLookupRound = logger.MLogT{
	Description: "Called once per round of an iterative node lookup.",
	Receiver:    "LOOKUP",
	Verb:        "ROUND",
	Subject:     "TARGET",
	Details: []logger.MLogDetailT{
		{Owner: "TARGET", Key: "ID", Value: "STRING"},
		{Owner: "LOOKUP", Key: "ROUND", Value: "INT"},
		{Owner: "LOOKUP", Key: "QUERIED", Value: "INT"},
	},
}

// mlogBootstrap is sent once per seed node contacted at startup.
var mlogBootstrap = logger.MLogT{
	Description: "Called once for each seed node contacted during bootstrap.",
	Receiver:    "BOOTSTRAP",
	Verb:        "DIAL",
	Subject:     "SEED",
	Details: []logger.MLogDetailT{
		{Owner: "SEED", Key: "UDP_ADDRESS", Value: "STRING"},
	},
}
