package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSlots(t *testing.T) {
	win := func(start, end MinuteOfDay) ScheduleWindow {
		return ScheduleWindow{Start: start, End: end, Active: true}
	}
	occ := func(starts ...MinuteOfDay) map[MinuteOfDay]struct{} {
		m := make(map[MinuteOfDay]struct{}, len(starts))
		for _, s := range starts {
			m[s] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name     string
		windows  []ScheduleWindow
		occupied map[MinuteOfDay]struct{}
		step     MinuteOfDay
		want     []Slot
	}{
		{
			name:     "no windows",
			windows:  nil,
			occupied: occ(),
			step:     30,
			want:     []Slot{},
		},
		{
			name:     "one hour window",
			windows:  []ScheduleWindow{win(540, 600)},
			occupied: occ(),
			step:     30,
			want:     []Slot{{540, 570}, {570, 600}},
		},
		{
			name:     "upper bound exclusive",
			windows:  []ScheduleWindow{win(540, 570)},
			occupied: occ(),
			step:     30,
			want:     []Slot{{540, 570}},
		},
		{
			name:     "ragged window emits a trailing short slot",
			windows:  []ScheduleWindow{win(540, 585)},
			occupied: occ(),
			step:     30,
			want:     []Slot{{540, 570}, {570, 600}},
		},
		{
			name:     "zero length window",
			windows:  []ScheduleWindow{win(540, 540)},
			occupied: occ(),
			step:     30,
			want:     []Slot{},
		},
		{
			name:     "occupied starts skipped",
			windows:  []ScheduleWindow{win(540, 660)},
			occupied: occ(570, 630),
			step:     30,
			want:     []Slot{{540, 570}, {600, 630}},
		},
		{
			name:     "all occupied",
			windows:  []ScheduleWindow{win(540, 600)},
			occupied: occ(540, 570),
			step:     30,
			want:     []Slot{},
		},
		{
			name:     "two windows in order",
			windows:  []ScheduleWindow{win(540, 600), win(900, 960)},
			occupied: occ(),
			step:     30,
			want:     []Slot{{540, 570}, {570, 600}, {900, 930}, {930, 960}},
		},
		{
			name:     "overlapping windows repeat shared slots",
			windows:  []ScheduleWindow{win(540, 600), win(570, 630)},
			occupied: occ(),
			step:     30,
			want:     []Slot{{540, 570}, {570, 600}, {570, 600}, {600, 630}},
		},
		{
			name:     "hour step",
			windows:  []ScheduleWindow{win(540, 720)},
			occupied: occ(600),
			step:     60,
			want:     []Slot{{540, 600}, {660, 720}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := buildSlots(tc.windows, tc.occupied, tc.step)
			assert.Equal(t, tc.want, got)
		})
	}
}
