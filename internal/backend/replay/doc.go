// Package replay implements bt.Backend by playing back a scripted YAML
// scenario. It needs no radio, which makes it the backend of choice for
// demos, dry runs of the CLI and end-to-end tests of the discovery engine.
//
// A scenario lists the adapter, the supported methods, timed sightings per
// scan method and the services each device answers with:
//
//	methods: classic,le
//	low_energy:
//	  sightings:
//	    - at: 200ms
//	      every: 1s
//	      address: "A4:C1:38:0B:2E:7F"
//	      rssi: -67
//	services:
//	  "A4:C1:38:0B:2E:7F":
//	    cached: ["181A"]
//
// Classic scans end after their scripted duration. LE scans run until they
// are stopped unless a duration is given.
package replay
