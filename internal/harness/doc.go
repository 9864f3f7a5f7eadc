// Package harness runs conformance scenarios against the delete service.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: plate_shared_tag
//	description: "A tag shared with an image outside the plate survives"
//	principal: {user_id: 1, group_id: 1}
//	fixtures:
//	  - table: plate
//	    rows: [{id: 7}]
//	  - table: well
//	    rows: [{id: 70, plate: 7}]
//	request:
//	  type: Plate
//	  id: 7
//	  options: {"/Plate/PlateAnnotationLink/Annotation": HARD}
//	expect:
//	  deleted: {plate: [7], well: [70]}
//	  warnings: []
//	assertions:
//	  - type: remaining
//	    table: annotation
//	    ids: [9]
//
// Fixture rows are owned by the scenario principal unless they set
// owner_id or group_id themselves. Request options use the flat keys of
// ir.ParseOptions.
//
// # Assertion Types
//
//   - remaining: the ids left in a table after the request, in order
//   - event_order: event types appear in this order (gaps allowed)
//   - event_count: an event type is published exactly N times
//   - warning_contains: some warning contains the text
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory SQLite database with a fixed
// request id (testutil.ConstantRequestIDs). Trace events are numbered by a
// testutil.Sequence in publication order. Reports and traces therefore
// compare byte for byte against golden files in testdata/golden.
package harness
