package schedule

import (
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"hourly", " Daily ", "WEEKLY", "monthly", "custom"} {
		if _, err := ParseFrequency(raw); err != nil {
			t.Fatalf("ParseFrequency(%q) error: %v", raw, err)
		}
	}
	if _, err := ParseFrequency("fortnightly"); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		freq    Frequency
		custom  *CustomSpec
		wantErr bool
	}{
		{name: "hourly", freq: Hourly},
		{name: "daily with spec", freq: Daily, custom: &CustomSpec{WeekDays: []int{1}, Hours: []int{9}}, wantErr: true},
		{name: "custom ok", freq: Custom, custom: &CustomSpec{WeekDays: []int{1, 3}, Hours: []int{9, 17}}},
		{name: "custom nil spec", freq: Custom, wantErr: true},
		{name: "custom empty weekdays", freq: Custom, custom: &CustomSpec{Hours: []int{9}}, wantErr: true},
		{name: "custom empty hours", freq: Custom, custom: &CustomSpec{WeekDays: []int{1}}, wantErr: true},
		{name: "weekday out of range", freq: Custom, custom: &CustomSpec{WeekDays: []int{7}, Hours: []int{9}}, wantErr: true},
		{name: "hour out of range", freq: Custom, custom: &CustomSpec{WeekDays: []int{1}, Hours: []int{24}}, wantErr: true},
		{name: "unknown", freq: Frequency("yearly"), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.freq, tt.custom)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.freq, err, tt.wantErr)
			}
		})
	}
}

func TestNextFixedIntervals(t *testing.T) {
	t.Parallel()
	from := time.Date(2026, time.March, 10, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name string
		freq Frequency
		want time.Time
	}{
		{name: "hourly zeroes seconds", freq: Hourly, want: time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)},
		{name: "daily keeps time of day", freq: Daily, want: time.Date(2026, time.March, 11, 14, 30, 45, 0, time.UTC)},
		{name: "weekly adds seven days", freq: Weekly, want: time.Date(2026, time.March, 17, 14, 30, 45, 0, time.UTC)},
		{name: "monthly same day", freq: Monthly, want: time.Date(2026, time.April, 10, 14, 30, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.freq, nil, from)
			if err != nil {
				t.Fatalf("Next(%q) error: %v", tt.freq, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Next(%q) = %v, want %v", tt.freq, got, tt.want)
			}
			if !got.After(from) {
				t.Fatalf("Next(%q) = %v is not after %v", tt.freq, got, from)
			}
		})
	}
}

func TestNextMonthlyClamps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "jan 31 to feb 28",
			from: time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "jan 31 to feb 29 leap year",
			from: time.Date(2028, time.January, 31, 9, 0, 0, 0, time.UTC),
			want: time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "march 31 to april 30",
			from: time.Date(2026, time.March, 31, 23, 15, 0, 0, time.UTC),
			want: time.Date(2026, time.April, 30, 23, 15, 0, 0, time.UTC),
		},
		{
			name: "december rolls into january",
			from: time.Date(2026, time.December, 15, 6, 0, 0, 0, time.UTC),
			want: time.Date(2027, time.January, 15, 6, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(Monthly, nil, tt.from)
			if err != nil {
				t.Fatalf("Next error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextCustom(t *testing.T) {
	t.Parallel()
	// Monday and Wednesday at 09:00.
	spec := &CustomSpec{WeekDays: []int{1, 3}, Hours: []int{9}}

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			// 2026-03-09 is a Monday.
			name: "monday 10:00 to wednesday 09:00",
			from: time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "monday 08:59 to monday 09:00",
			from: time.Date(2026, time.March, 9, 8, 59, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			// Exactly on a slot: the result must be strictly after.
			name: "monday 09:00 to wednesday 09:00",
			from: time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday evening wraps to next monday",
			from: time.Date(2026, time.March, 11, 20, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(Custom, spec, tt.from)
			if err != nil {
				t.Fatalf("Next error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextCustomMultipleHours(t *testing.T) {
	t.Parallel()
	spec := &CustomSpec{WeekDays: []int{5}, Hours: []int{8, 18}}

	// 2026-03-13 is a Friday.
	from := time.Date(2026, time.March, 13, 8, 30, 0, 0, time.UTC)
	got, err := Next(Custom, spec, from)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2026, time.March, 13, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
