// Package cluster holds the types shared by every process in a strata
// cluster (the coordinator, the disks, and the user driver) together with
// the small client helpers used to call a peer over the framed wire protocol.
//
// The central type is Topology: the ordered view of an array that the
// coordinator hands to a driver when it initiates a copy, read, failure or
// decommission operation. Disk entries appear in array disk-order, and that
// order is load-bearing: slot i of every stripe lives on Disks[i].
package cluster
