package testutil

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run ID on every call.
//
// Unlike engine.FixedGenerator, which hands out a list of IDs once each,
// this generator never runs dry. Golden traces embed the run ID, so a
// scenario always runs under the ID it declares.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator returns a generator for id, or DefaultRunID if id
// is empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
