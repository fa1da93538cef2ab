// Package harness runs scripted scenarios against Permanent Stores.
//
// A scenario drives one or more stores through a sequence of operations,
// checks each outcome, records a trace, and evaluates assertions on the
// final state. Traces are deterministic and can be compared with golden
// files.
//
// # Scenario Format
//
//	name: sounds_round_trip
//	description: "A stored clip is readable until deleted"
//	setup:
//	  - store: sounds
//	    op: set
//	    key: B001C000S000
//	    value: AAAA==
//	flow:
//	  - store: sounds
//	    op: get
//	    key: B001C000S000
//	    expect:
//	      found: true
//	      value: AAAA==
//	  - store: sounds
//	    op: add_collection
//	    collection: voices
//	assertions:
//	  - type: final_entries
//	    store: sounds
//	    entries: { B001C000S000: AAAA== }
//	  - type: trace_order
//	    ops: [set, get]
//
// # Operations
//
// set, get, has, delete, clear, keys, values, entries and count map to the
// Store methods of the same name. add_collection opens another collection
// in the store's database, which upgrades the database and invalidates the
// store's connection.
//
// # Assertion Types
//
//   - final_entries: the store holds exactly the given pairs
//   - trace_count: an operation appears exactly N times
//   - trace_order: operations appear in the given relative order
//   - database_version: the store's database has the given version
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/round_trip.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.Options{Dir: dir})
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
