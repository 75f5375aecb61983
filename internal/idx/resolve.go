package idx

// Resolve fills in End for every record, in place, in one pass. Each record
// ends where the next one starts; the last record is open.
//
// Start offsets must not decrease. If they do the idx file is inconsistent
// and Resolve returns a *CorruptIndexError; the records are then partially
// resolved and must be discarded.
//
// An empty slice is valid and resolves to nothing.
func Resolve(records []IndexRecord) error {
	for i := range records {
		if i == len(records)-1 {
			records[i].End = OpenEnd()
			break
		}
		cur, next := &records[i], &records[i+1]
		if next.Start < cur.Start {
			return &CorruptIndexError{
				Seq:       cur.Seq,
				Start:     cur.Start,
				NextSeq:   next.Seq,
				NextStart: next.Start,
			}
		}
		cur.End = ClosedEnd(next.Start)
	}
	return nil
}
