package position

import "testing"

func TestEventNumberOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b EventNumber
		less bool
	}{
		{"equal", 5, 5, false},
		{"less", 3, 4, true},
		{"greater", 9, 2, false},
		{"first", FirstEventNumber, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.less {
				t.Errorf("EventNumber(%d).Less(%d) = %v, want %v", tt.a, tt.b, got, tt.less)
			}
		})
	}
}

func TestEventNumberEqual(t *testing.T) {
	if !EventNumber(7).Equal(7) {
		t.Error("expected 7 == 7")
	}
	if EventNumber(7).Equal(8) {
		t.Error("expected 7 != 8")
	}
}

func TestPositionOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		less bool
	}{
		{"equal", Position{1, 1}, Position{1, 1}, false},
		{"commit less", Position{1, 9}, Position{2, 0}, true},
		{"commit greater", Position{3, 0}, Position{2, 9}, false},
		{"prepare less", Position{2, 1}, Position{2, 5}, true},
		{"first", FirstPosition, Position{0, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.less {
				t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.less)
			}
		})
	}
}

func TestPositionEqual(t *testing.T) {
	if !(Position{4, 2}).Equal(Position{4, 2}) {
		t.Error("expected equal positions to compare equal")
	}
	if (Position{4, 2}).Equal(Position{4, 3}) {
		t.Error("expected differing prepare to compare unequal")
	}
}

func TestPositionString(t *testing.T) {
	if got, want := (Position{3, 4}).String(), "(3,4)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := EventNumber(12).String(), "12"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
