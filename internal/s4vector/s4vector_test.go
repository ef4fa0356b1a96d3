package s4vector

import "testing"

func TestGenerate_SumIsOneMoreThanGreaterNeighbor(t *testing.T) {
	var seq uint64
	left := &S4Vector{Ssn: 1, Sum: 3, Sid: 1, Seq: 5}
	right := &S4Vector{Ssn: 1, Sum: 7, Sid: 1, Seq: 6}

	got := Generate(left, right, 1, 2, &seq)
	if got.Sum != 8 {
		t.Fatalf("Sum = %d, want 8", got.Sum)
	}
	if got.Seq != 1 {
		t.Fatalf("Seq = %d, want 1 (first use of counter)", got.Seq)
	}
}

func TestGenerate_NoNeighborsSumIsOne(t *testing.T) {
	var seq uint64
	got := Generate(nil, nil, 1, 1, &seq)
	if got.Sum != 1 {
		t.Fatalf("Sum = %d, want 1", got.Sum)
	}
}

func TestGenerate_SeqMonotonic(t *testing.T) {
	var seq uint64
	a := Generate(nil, nil, 1, 1, &seq)
	b := Generate(nil, nil, 1, 1, &seq)
	c := Generate(nil, nil, 1, 1, &seq)
	if !(a.Seq < b.Seq && b.Seq < c.Seq) {
		t.Fatalf("seq not strictly increasing: %d, %d, %d", a.Seq, b.Seq, c.Seq)
	}
}

func TestCompare_Lexicographic(t *testing.T) {
	cases := []struct {
		name string
		a, b S4Vector
		want int
	}{
		{"ssn dominates", S4Vector{Ssn: 2}, S4Vector{Ssn: 1, Sum: 99, Sid: 99, Seq: 99}, 1},
		{"sum breaks ssn tie", S4Vector{Ssn: 1, Sum: 2}, S4Vector{Ssn: 1, Sum: 1, Sid: 99}, 1},
		{"sid breaks sum tie", S4Vector{Ssn: 1, Sum: 1, Sid: 2}, S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 99}, 1},
		{"seq breaks sid tie", S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 2}, S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}, 1},
		{"equal", S4Vector{1, 1, 1, 1}, S4Vector{1, 1, 1, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.a, tc.b); got != tc.want {
				t.Fatalf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestGreaterSidWinsOnTiedSum(t *testing.T) {
	// Scenario 2 from the spec: concurrent head inserts with sum=1, differing sid.
	x := S4Vector{Ssn: 1, Sum: 1, Sid: 1, Seq: 1}
	y := S4Vector{Ssn: 1, Sum: 1, Sid: 2, Seq: 1}
	if !Greater(y, x) {
		t.Fatalf("expected y (sid=2) to be greater than x (sid=1)")
	}
}
