// Package remote finds btscout servers on the local network and reads their
// event streams.
//
// Servers announce themselves over mDNS as "_btscout._tcp". Browse collects
// everything that answers within the timeout; Find stops at the first match.
//
// # Usage Example
//
//	peer, err := remote.NewBrowser().Find(ctx, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := remote.Dial(ctx, peer.EventsURL())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	err = client.Stream(ctx, func(m server.Message) {
//	    fmt.Println(m.Type, m.Device.Address)
//	})
//
// # Network Requirements
//
// Browsing requires multicast on the local segment and UDP port 5353
// through the firewall.
package remote
