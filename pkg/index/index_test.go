package index

import "testing"

func testRecords() []Record {
	return []Record{
		{Location: "STG.H02", ReferenceID: "ref-stg-h02", Type: "STAGING_AREA"},
		{Location: "B-11.3A", ReferenceID: "ref-b113a", Type: "STACKING_AREA"},
		{Location: "A-17", ReferenceID: "ref-a17", Type: "GENERAL_AREA"},
		{Location: "DD05", ReferenceID: "ref-dd05", Type: "DOCK_DOOR"},
	}
}

func TestFindExactMatch(t *testing.T) {
	idx := Build(testRecords())
	e, ok := idx.Find("B-11.3A")
	if !ok {
		t.Fatal("expected hit for B-11.3A")
	}
	if e.ReferenceID != "ref-b113a" || e.Area != AreaStacking {
		t.Fatalf("bad entry: %+v", e)
	}
	// lookup is case-sensitive; lower-case must miss
	if _, ok := idx.Find("b-11.3a"); ok {
		t.Fatal("lower-case lookup must miss")
	}
	if _, ok := idx.Find("NOPE"); ok {
		t.Fatal("unknown code must miss")
	}
}

func TestUnknownTypeBucketsOther(t *testing.T) {
	idx := Build(testRecords())
	e, ok := idx.Find("DD05")
	if !ok || e.Area != AreaOther {
		t.Fatalf("DOCK_DOOR should classify as other, got %+v ok=%v", e, ok)
	}
	if n := len(idx.Area(AreaOther)); n != 1 {
		t.Fatalf("expected 1 other entry got %d", n)
	}
}

func TestAreaDisplay(t *testing.T) {
	if got := AreaStaging.DisplayName(); got != "Staging Area" {
		t.Fatalf("expected 'Staging Area' got %q", got)
	}
	if got := AreaOther.DisplayName(); got != "Other Area" {
		t.Fatalf("expected 'Other Area' got %q", got)
	}
	if AreaStacking.Color() != "#2ecc71" {
		t.Fatalf("unexpected stacking color %s", AreaStacking.Color())
	}
}

func TestSuggestSubstring(t *testing.T) {
	idx := Build(testRecords())
	got := idx.Suggest("h0")
	if len(got) != 1 || got[0].Location != "STG.H02" {
		t.Fatalf("expected [STG.H02] got %v", got)
	}
	if got := idx.Suggest(""); got != nil {
		t.Fatalf("blank term should return nothing, got %v", got)
	}
	if got := idx.Suggest("1"); len(got) != 2 {
		t.Fatalf("expected 2 matches for '1' got %d", len(got))
	}
}
