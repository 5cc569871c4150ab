// Package openstack implements the cloud backend for OpenStack using goose
// (nova for servers and flavors, neutron for networks).
//
// SSH keys are injected through a cloud-init document passed as user data.
// Servers are polled until they leave the BUILD status.
package openstack
