// Package sshclient opens SSH sessions to chain nodes. Nodes only have
// private addresses, so connections are tunneled through the chain's
// jumpbox the same way the provisioner's ProxyCommand does.
package sshclient
