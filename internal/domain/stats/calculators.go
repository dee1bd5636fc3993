package stats

func Singles(b Batting) float64 {
	return b.Hits - b.Doubles - b.Triples - b.HomeRuns
}

func TotalBases(b Batting) float64 {
	return Singles(b) + 2*b.Doubles + 3*b.Triples + 4*b.HomeRuns
}

// DeriveTotalBases fills the stored singles and total-bases fields. Ingestion
// calls it once; readers never recompute.
func DeriveTotalBases(r StatRecord) StatRecord {
	r.Batting.Singles = Singles(r.Batting)
	r.Batting.TotalBases = TotalBases(r.Batting)
	return r
}
