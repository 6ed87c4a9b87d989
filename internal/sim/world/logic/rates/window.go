package rates

// Window counts events in fixed windows of Size ticks. A zero Size or Max
// disables the limit.
type Window struct {
	Start uint64
	Count int
	Size  uint64
	Max   int
}

// Allow records one event at nowTick. When the window is full it reports the
// ticks left until the next window opens.
func (w *Window) Allow(nowTick uint64) (ok bool, cooldownTicks uint64) {
	if w.Size == 0 || w.Max <= 0 {
		return true, 0
	}
	if w.Count == 0 || nowTick < w.Start || nowTick-w.Start >= w.Size {
		w.Start = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= w.Max {
		return true, 0
	}
	return false, (w.Start + w.Size) - nowTick
}
