package testutil

// DefaultRequestID is returned by a ConstantRequestIDs built without an id.
const DefaultRequestID = "test-request"

// ConstantRequestIDs hands out the same request id every time.
//
// Unlike engine.FixedGenerator, which returns ids in sequence and panics
// once they run out, it never runs dry. Scenario reports and events then
// carry one predictable id however many requests the service starts.
//
// It satisfies engine.RequestIDGenerator and is safe for concurrent use.
type ConstantRequestIDs struct {
	id string
}

// NewConstantRequestIDs creates a generator returning id.
func NewConstantRequestIDs(id string) ConstantRequestIDs {
	if id == "" {
		id = DefaultRequestID
	}
	return ConstantRequestIDs{id: id}
}

// Generate returns the fixed id.
func (g ConstantRequestIDs) Generate() string {
	return g.id
}
