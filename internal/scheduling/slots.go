package scheduling

// buildSlots walks each window forward in fixed increments and emits the
// starts not present in occupied. The upper bound is exclusive: the last
// slot's start is strictly before the window end, even when the remaining
// gap is shorter than a full slot.
//
// Windows are processed in the order given. Overlapping windows created by
// clinic staff will emit the shared slots once per window; operators own
// that data and the duplication is preserved as-is.
func buildSlots(windows []ScheduleWindow, occupied map[MinuteOfDay]struct{}, step MinuteOfDay) []Slot {
	slots := []Slot{}

	for _, w := range windows {
		for t := w.Start; t < w.End; t += step {
			if _, taken := occupied[t]; taken {
				continue
			}
			slots = append(slots, Slot{Start: t, End: t + step})
		}
	}

	return slots
}
