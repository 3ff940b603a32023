package heiretsu

// Tick is a monotonically increasing change counter. The world advances it
// once per logical step (see World.AdvanceTick); component writes are stamped
// with the tick current at the time of the write.
type Tick uint64

// isNewerThan reports whether the stamped tick falls inside the change
// detection window (lastRun, thisRun]. Both bounds come from the same
// snapshot, taken once per iteration pass and shared by every task of a
// parallel dispatch.
func (t Tick) isNewerThan(lastRun, thisRun Tick) bool {
	return t > lastRun && t <= thisRun
}

// componentTicks records when a single component value was added to its
// entity and when it was last written.
type componentTicks struct {
	added   Tick
	changed Tick
}
