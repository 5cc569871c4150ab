// Package ethereum implements the chain backend for private geth networks.
//
// A chain gets a random network id and a proof-of-work genesis unless the
// caller supplies both to join an existing network. The controller node runs
// the network stats service; miner nodes discover each other through the
// enode ids recorded in every node's chain_config.
package ethereum
