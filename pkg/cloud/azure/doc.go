// Package azure implements the cloud backend for Microsoft Azure using the
// resource manager SDK. A chain's network is given as
// "<resource group>/<virtual network>"; each node gets a NIC named
// "if-<node name>" and a VM named after the node.
package azure
