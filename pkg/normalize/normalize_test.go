package normalize

import (
	"errors"
	"testing"
)

func TestRangeExpansion(t *testing.T) {
	codes, err := Normalize("AX1-AX100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 100 {
		t.Fatalf("expected 100 codes got %d", len(codes))
	}
	if codes[0] != "AX1" || codes[99] != "AX100" {
		t.Fatalf("bad bounds: first=%s last=%s", codes[0], codes[99])
	}
	// ascending, contiguous
	if codes[41] != "AX42" {
		t.Fatalf("expected AX42 at index 41 got %s", codes[41])
	}
}

func TestRangeSingleElement(t *testing.T) {
	codes, err := Normalize("B7-B7")
	if err != nil || len(codes) != 1 || codes[0] != "B7" {
		t.Fatalf("expected [B7] got %v err=%v", codes, err)
	}
}

func TestRangeInvalid(t *testing.T) {
	_, err := Normalize("AX100-AX1")
	if !errors.Is(err, ErrRangeInvalid) {
		t.Fatalf("expected ErrRangeInvalid got %v", err)
	}
}

func TestRangePrefixMismatchFallsThrough(t *testing.T) {
	// differing prefixes are not a range; input passes through untouched
	codes, err := Normalize("AX1-BX9")
	if err != nil || len(codes) != 1 || codes[0] != "AX1-BX9" {
		t.Fatalf("expected pass-through got %v err=%v", codes, err)
	}
}

func TestQuadShorthand(t *testing.T) {
	codes, err := Normalize("B113A")
	if err != nil || len(codes) != 1 || codes[0] != "B-11.3A" {
		t.Fatalf("expected [B-11.3A] got %v err=%v", codes, err)
	}
	codes, _ = Normalize("b92c")
	if codes[0] != "B-9.2C" {
		t.Fatalf("expected B-9.2C got %s", codes[0])
	}
}

func TestThreeCharStaging(t *testing.T) {
	codes, err := Normalize("H02")
	if err != nil || len(codes) != 1 || codes[0] != "STG.H02" {
		t.Fatalf("expected [STG.H02] got %v err=%v", codes, err)
	}
	// RTS and excluded substrings never get the STG prefix
	if codes, _ := Normalize("RTS"); codes[0] != "RTS" {
		t.Fatalf("RTS must pass through, got %s", codes[0])
	}
	if codes, _ := Normalize("AX1"); codes[0] != "AX1" {
		t.Fatalf("AX1 must pass through, got %s", codes[0])
	}
}

func TestTwoCharStaging(t *testing.T) {
	codes, err := Normalize("H2")
	if err != nil || codes[0] != "STG.H02" {
		t.Fatalf("expected STG.H02 got %v err=%v", codes, err)
	}
	// first char outside the staging set passes through
	if codes, _ := Normalize("Z2"); codes[0] != "Z2" {
		t.Fatalf("Z2 must pass through, got %s", codes[0])
	}
}

func TestDockDoorPassThrough(t *testing.T) {
	codes, err := Normalize("DD05")
	if err != nil || codes[0] != "DD05" {
		t.Fatalf("expected DD05 got %v err=%v", codes, err)
	}
}

func TestAisleDashInsert(t *testing.T) {
	codes, err := Normalize("A173")
	if err != nil || codes[0] != "A-173" {
		t.Fatalf("expected A-173 got %v err=%v", codes, err)
	}
}

func TestIdempotentOnCanonical(t *testing.T) {
	for _, canonical := range []string{"B-11.3A", "STG.H02", "A-173"} {
		codes, err := Normalize(canonical)
		if err != nil || len(codes) != 1 || codes[0] != canonical {
			t.Fatalf("canonical %s mutated to %v err=%v", canonical, codes, err)
		}
	}
}

func TestTrimAndUppercase(t *testing.T) {
	codes, err := Normalize("  dd05  ")
	if err != nil || codes[0] != "DD05" {
		t.Fatalf("expected DD05 got %v err=%v", codes, err)
	}
}

func TestIsRange(t *testing.T) {
	if !IsRange("AX1-AX100") {
		t.Fatal("AX1-AX100 should be a range")
	}
	if !IsRange("AX100-AX1") {
		t.Fatal("reversed bounds are still a range expression")
	}
	if IsRange("AX1-BX9") {
		t.Fatal("prefix mismatch is not a range")
	}
	if IsRange("B113A") {
		t.Fatal("quad shorthand is not a range")
	}
}
