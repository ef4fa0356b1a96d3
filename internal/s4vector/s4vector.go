// Package s4vector implements the four-component version identifier that
// totally orders every operation applied to a document's RGA.
package s4vector

import "fmt"

// S4Vector is the version identifier of a single RGA operation.
//
// The four fields are compared lexicographically: Ssn, then Sum, then Sid,
// then Seq. That ordering is the arbiter of every tie-break in the engine —
// insertion position, concurrent-edit interleaving, and duplicate detection
// all reduce to S4Vector comparison.
type S4Vector struct {
	Ssn uint64 `json:"ssn"`
	Sum uint64 `json:"sum"`
	Sid uint64 `json:"sid"`
	Seq uint64 `json:"seq"`
}

// Generate mints a new S4Vector for a local operation produced between the
// optional left and right neighbors. Sum is one more than the greater of the
// two neighbors' Sum (zero where a neighbor is absent), so a later-originated
// insert always ranks above an earlier concurrent insert anchored at the same
// position. Seq is fetched-and-incremented from seqCounter, which must be the
// caller's per-document local sequence counter.
func Generate(left, right *S4Vector, ssn, sid uint64, seqCounter *uint64) S4Vector {
	var maxSum uint64
	if left != nil && left.Sum > maxSum {
		maxSum = left.Sum
	}
	if right != nil && right.Sum > maxSum {
		maxSum = right.Sum
	}

	*seqCounter++

	return S4Vector{
		Ssn: ssn,
		Sum: maxSum + 1,
		Sid: sid,
		Seq: *seqCounter,
	}
}

// Compare returns -1, 0, or 1 as a orders before, equal to, or after b under
// the lexicographic (Ssn, Sum, Sid, Seq) total order.
func Compare(a, b S4Vector) int {
	switch {
	case a.Ssn != b.Ssn:
		return cmpUint(a.Ssn, b.Ssn)
	case a.Sum != b.Sum:
		return cmpUint(a.Sum, b.Sum)
	case a.Sid != b.Sid:
		return cmpUint(a.Sid, b.Sid)
	default:
		return cmpUint(a.Seq, b.Seq)
	}
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether a orders strictly before b.
func Less(a, b S4Vector) bool { return Compare(a, b) < 0 }

// Greater reports whether a orders strictly after b.
func Greater(a, b S4Vector) bool { return Compare(a, b) > 0 }

// String renders the vector in its canonical "ssn.sum.sid.seq" form, mainly
// for logging and test failure messages.
func (v S4Vector) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Ssn, v.Sum, v.Sid, v.Seq)
}
