package storage

// CFStatistics counts the engine accesses a reader performed against one
// column family. Counters accumulate locally and are only ever merged into
// a caller-owned total by an explicit Add.
type CFStatistics struct {
	Get         int
	Seek        int
	SeekForPrev int
	Next        int
	Prev        int
	// Processed counts records that actually contributed to a result, as
	// opposed to entries merely stepped over.
	Processed int
}

func (s *CFStatistics) Add(other *CFStatistics) {
	s.Get += other.Get
	s.Seek += other.Seek
	s.SeekForPrev += other.SeekForPrev
	s.Next += other.Next
	s.Prev += other.Prev
	s.Processed += other.Processed
}

// Statistics groups per-CF access counters for one logical operation.
type Statistics struct {
	Data  CFStatistics
	Lock  CFStatistics
	Write CFStatistics
}

func (s *Statistics) Add(other *Statistics) {
	s.Data.Add(&other.Data)
	s.Lock.Add(&other.Lock)
	s.Write.Add(&other.Write)
}

// Reset zeroes all counters.
func (s *Statistics) Reset() {
	*s = Statistics{}
}
