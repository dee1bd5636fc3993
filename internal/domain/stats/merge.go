package stats

type MergeDecision string

const (
	DecisionInsert  MergeDecision = "insert"
	DecisionReplace MergeDecision = "replace"
	DecisionIgnore  MergeDecision = "ignore"
)

// ResolveImport decides what happens to an incoming record given whether one
// already exists for its (player, source). Vendor projections are write-once;
// only myProjections may be replaced.
func ResolveImport(incoming ProjectionSource, exists bool) MergeDecision {
	if !exists {
		return DecisionInsert
	}
	if incoming == SourceMyProjections {
		return DecisionReplace
	}
	return DecisionIgnore
}

type ImportCounts struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	Ignored  int `json:"ignored"`
	Rejected int `json:"rejected"`
}

func (c *ImportCounts) Add(d MergeDecision) {
	switch d {
	case DecisionInsert:
		c.Inserted++
	case DecisionReplace:
		c.Replaced++
	case DecisionIgnore:
		c.Ignored++
	}
}
