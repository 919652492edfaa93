package extract

// SeenSet is the read side of the run state: extractors consult it to drop
// items already delivered in earlier runs.
type SeenSet interface {
	Contains(id string) bool
}

// Stats counts per-source extraction outcomes.
type Stats struct {
	Total            int
	SkippedDuplicate int
	SkippedOld       int
	New              int
	Errors           int
}

func (s *Stats) Add(other Stats) {
	s.Total += other.Total
	s.SkippedDuplicate += other.SkippedDuplicate
	s.SkippedOld += other.SkippedOld
	s.New += other.New
	s.Errors += other.Errors
}
