package course

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestEffectivePrice(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		course Course
		want   int64
	}{
		{
			name:   "no discount",
			course: Course{Price: 100000},
			want:   100000,
		},
		{
			name:   "discount in the future",
			course: Course{Price: 100000, DiscountPrice: ptr[int64](80000), DiscountEndDate: ptr(now.Add(time.Hour))},
			want:   80000,
		},
		{
			name:   "discount ended",
			course: Course{Price: 100000, DiscountPrice: ptr[int64](80000), DiscountEndDate: ptr(now.Add(-time.Hour))},
			want:   100000,
		},
		{
			name:   "discount ends exactly now",
			course: Course{Price: 100000, DiscountPrice: ptr[int64](80000), DiscountEndDate: ptr(now)},
			want:   100000,
		},
		{
			name:   "discount price without end date",
			course: Course{Price: 100000, DiscountPrice: ptr[int64](80000)},
			want:   100000,
		},
		{
			name:   "free through discount",
			course: Course{Price: 100000, DiscountPrice: ptr[int64](0), DiscountEndDate: ptr(now.Add(time.Minute))},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.course.EffectivePrice(now); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
			if free := tt.course.Free(now); free != (tt.want == 0) {
				t.Fatalf("expected free=%v, got %v", tt.want == 0, free)
			}
		})
	}
}
