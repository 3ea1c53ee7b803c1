// Package discovery finds configurable nodes on the local network over mDNS.
//
// Nodes advertise a "_nodecfg._tcp" service with TXT records such as
// "id=Office" and "instances=3". Discovered nodes can be merged into a
// target catalog so remote-command rules can address nodes the config
// server has not reported yet.
//
// # Usage Example
//
//	nodes, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	discovery.MergeInto(targets, nodes)
//
// mDNS requires multicast on the local segment; scans from inside
// containers or across VLANs usually return nothing.
package discovery
