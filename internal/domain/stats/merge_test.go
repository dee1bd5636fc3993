package stats

import "testing"

func TestResolveImport(t *testing.T) {
	tests := []struct {
		name     string
		incoming ProjectionSource
		exists   bool
		want     MergeDecision
	}{
		{name: "insert new vendor row", incoming: SourceSteamer, exists: false, want: DecisionInsert},
		{name: "ignore duplicate vendor row", incoming: SourceSteamer, exists: true, want: DecisionIgnore},
		{name: "insert first custom row", incoming: SourceMyProjections, exists: false, want: DecisionInsert},
		{name: "replace custom row", incoming: SourceMyProjections, exists: true, want: DecisionReplace},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveImport(tc.incoming, tc.exists)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestImportCountsAdd(t *testing.T) {
	var c ImportCounts
	c.Add(DecisionInsert)
	c.Add(DecisionInsert)
	c.Add(DecisionReplace)
	c.Add(DecisionIgnore)
	if c.Inserted != 2 || c.Replaced != 1 || c.Ignored != 1 || c.Rejected != 0 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}
