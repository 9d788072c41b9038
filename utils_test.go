package forecastplot

import (
	"math"
	"reflect"
	"testing"
)

func TestFilter(t *testing.T) {
	t.Run("empty slice", func(t *testing.T) {
		var input []int = nil
		pred := func(int) bool { return true }
		got := Filter(input, pred)
		want := []int{}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		input := []int{1, 2, 3}
		got := Filter(input, func(x int) bool { return x > 10 })
		want := []int{}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("partial match", func(t *testing.T) {
		input := []string{"Forecast", "Actual", "Forecast"}
		got := Filter(input, func(x string) bool { return x != "Actual" })
		want := []string{"Forecast", "Forecast"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})
}

func TestMin(t *testing.T) {
	if got := Min(5, 3); got != 3 {
		t.Fatalf("Min(5,3) = %v, want 3", got)
	}

	a := math.NaN()
	if got := Min(1.0, a); got != 1.0 {
		t.Fatalf("Min(1.0,NaN) = %v, want 1.0", got)
	}
}

func TestArange(t *testing.T) {
	tests := []struct {
		name        string
		start, stop int
		want        []int
	}{
		{"from zero", 0, 5, []int{0, 1, 2, 3, 4}},
		{"offset", 3, 8, []int{3, 4, 5, 6, 7}},
		{"empty", 2, 2, []int{}},
		{"reversed", 5, 1, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arange(tt.start, tt.stop)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Arange(%d, %d) = %v, want %v", tt.start, tt.stop, got, tt.want)
			}
		})
	}
}

func TestThreadUnsafeRing(t *testing.T) {
	t.Run("partial fill preserved order", func(t *testing.T) {
		r := NewRing[int](3)
		r.Push(10)
		r.Push(20)
		got := r.ReadAllOrdered()
		want := []int{10, 20}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	})

	t.Run("wraparound preserves newest", func(t *testing.T) {
		r := NewRing[int](3)
		for i := 1; i <= 7; i++ {
			r.Push(i)
		}
		got := r.ReadAllOrdered()
		want := []int{5, 6, 7}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	})

	t.Run("read on empty returns empty", func(t *testing.T) {
		r := NewRing[int](3)
		if got := r.ReadAllOrdered(); len(got) != 0 {
			t.Fatalf("expected empty slice, got %v", got)
		}
	})

	t.Run("newest on empty", func(t *testing.T) {
		r := NewRing[int](3)
		if got, ok := r.Newest(); ok {
			t.Fatalf("Newest() = %v, true on empty ring", got)
		}
	})

	t.Run("newest after wraparound", func(t *testing.T) {
		r := NewRing[string](2)
		r.Push("a")
		r.Push("b")
		r.Push("c")
		got, ok := r.Newest()
		if !ok || got != "c" {
			t.Fatalf("Newest() = %q, %v, want \"c\", true", got, ok)
		}
	})
}
