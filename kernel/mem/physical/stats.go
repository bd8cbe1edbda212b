package physical

// AreaStats summarizes one area's page accounting.
type AreaStats struct {
	Number         int
	TablePages     int64
	UsablePages    int64
	FreePages      int64
	AllocatedPages int64
	ReservedPages  int64
}

// stats walks the area's metadata table once and tallies page counts.
// O(usable pages); intended for diagnostics/logging, never the hot path.
func (a *Area) stats() AreaStats {
	st := AreaStats{Number: a.number, TablePages: int64(a.base - a.start), UsablePages: a.usablePages()}
	for _, s := range a.pageStates {
		switch {
		case s.isSpecial():
			st.ReservedPages++
		case s.isAlloc():
			st.AllocatedPages++
		default:
			st.FreePages++
		}
	}
	return st
}

// Stats returns per-area page accounting for every initialized area.
func (al *Allocator) Stats() []AreaStats {
	al.lock.Acquire()
	defer al.lock.Release()

	out := make([]AreaStats, 0, MaxAreas)
	for i, a := range al.areas {
		if al.present(i) {
			out = append(out, a.stats())
		}
	}
	return out
}
