package tsdispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKindFlagsDisjoint(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 10 {
		t.Fatalf("Kinds() returned %d kinds, want 10", len(kinds))
	}
	for _, k1 := range kinds {
		if k1.Flag() != Mask(1)<<uint(k1.Ordinal()) {
			t.Errorf("%s flag = %#x, want 1<<%d", k1, k1.Flag(), k1.Ordinal())
		}
		for _, k2 := range kinds {
			if k1 == k2 {
				continue
			}
			if k1.Flag()&k2.Flag() != 0 {
				t.Errorf("%s and %s share bits", k1, k2)
			}
			// a mask holding only k1 never enables k2
			if MaskOf(k1).Enabled(k2) {
				t.Errorf("MaskOf(%s).Enabled(%s) = true", k1, k2)
			}
		}
		if !MaskOf(k1).Enabled(k1) {
			t.Errorf("MaskOf(%s).Enabled(%s) = false", k1, k1)
		}
		if !AllMask().Enabled(k1) {
			t.Errorf("AllMask() misses %s", k1)
		}
	}
}

func TestMaskEnabledRequiresExactBit(t *testing.T) {
	var undefined Kind = 63
	if AllMask().Enabled(undefined) {
		t.Error("undefined kind enabled by AllMask")
	}
	if Mask(^uint64(0)).Enabled(undefined) {
		t.Error("undefined kind enabled by full mask")
	}
	if Mask(0).Enabled(KindTSMetaIndex) {
		t.Error("empty mask enables a kind")
	}
}

func TestDerivedMasks(t *testing.T) {
	wantSearch := []Kind{
		KindTSMetaIndex, KindTSMetaDelete, KindUIDMetaIndex, KindUIDMetaDelete,
		KindAnnotationIndex, KindAnnotationDelete, KindSearchQuery,
	}
	wantPublish := []Kind{KindDataPointLong, KindDataPointDouble, KindAnnotationPublish}

	if diff := cmp.Diff(wantSearch, SearchMask().Kinds()); diff != "" {
		t.Errorf("SearchMask mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantPublish, PublishMask().Kinds()); diff != "" {
		t.Errorf("PublishMask mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantPublish, RPCMask().Kinds()); diff != "" {
		t.Errorf("RPCMask mismatch (-want +got):\n%s", diff)
	}
	if SearchMask()|PublishMask() != AllMask() {
		t.Errorf("search|publish = %s, want all", SearchMask()|PublishMask())
	}
	if SearchMask()&PublishMask() != 0 {
		t.Error("search and publish masks overlap")
	}

	for _, k := range Kinds() {
		if k.IsForSearch() != SearchMask().Enabled(k) {
			t.Errorf("%s IsForSearch disagrees with SearchMask", k)
		}
		if k.IsForPublish() != PublishMask().Enabled(k) {
			t.Errorf("%s IsForPublish disagrees with PublishMask", k)
		}
		if k.IsForRPC() != RPCMask().Enabled(k) {
			t.Errorf("%s IsForRPC disagrees with RPCMask", k)
		}
	}
}

func TestKindLookup(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"TSMETA_INDEX", KindTSMetaIndex, false},
		{"annotation_index", KindAnnotationIndex, false},
		{"  Search ", KindSearchQuery, false},
		{"dpoint_double", KindDataPointDouble, false},
		{"nope", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KindByName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownKind) {
					t.Errorf("KindByName(%q) error = %v, want ErrUnknownKind", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("KindByName(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("KindByName(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}

	for _, k := range Kinds() {
		got, err := KindByOrdinal(k.Ordinal())
		if err != nil || got != k {
			t.Errorf("KindByOrdinal(%d) = %s, %v", k.Ordinal(), got, err)
		}
		byName, err := KindByName(k.String())
		if err != nil || byName != k {
			t.Errorf("KindByName(%q) = %s, %v", k.String(), byName, err)
		}
	}
	for _, ord := range []int{-1, NumKinds(), 64} {
		if _, err := KindByOrdinal(ord); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("KindByOrdinal(%d) error = %v, want ErrUnknownKind", ord, err)
		}
	}
}

func TestBuildKindTable(t *testing.T) {
	t.Run("too many kinds", func(t *testing.T) {
		defs := make([]kindDef, MaxKinds+1)
		for i := range defs {
			defs[i] = kindDef{kind: Kind(i), name: fmt.Sprintf("K%d", i)}
		}
		if _, err := buildKindTable(defs); !errors.Is(err, ErrConfig) {
			t.Errorf("error = %v, want ErrConfig", err)
		}
	})
	t.Run("max kinds", func(t *testing.T) {
		defs := make([]kindDef, MaxKinds)
		for i := range defs {
			defs[i] = kindDef{kind: Kind(i), name: fmt.Sprintf("K%d", i), audience: AudienceRPC}
		}
		tbl, err := buildKindTable(defs)
		if err != nil {
			t.Fatalf("buildKindTable failed: %v", err)
		}
		if tbl.all != Mask(^uint64(0)) {
			t.Errorf("all = %#x, want every bit", tbl.all)
		}
	})
	t.Run("duplicate name", func(t *testing.T) {
		defs := []kindDef{{0, "A", AudienceSearch}, {1, "a", AudienceSearch}}
		if _, err := buildKindTable(defs); !errors.Is(err, ErrConfig) {
			t.Errorf("error = %v, want ErrConfig", err)
		}
	})
	t.Run("gap in ordinals", func(t *testing.T) {
		defs := []kindDef{{0, "A", AudienceSearch}, {2, "B", AudienceSearch}}
		if _, err := buildKindTable(defs); !errors.Is(err, ErrConfig) {
			t.Errorf("error = %v, want ErrConfig", err)
		}
	})
}

func TestMaskString(t *testing.T) {
	m := MaskOf(KindAnnotationIndex, KindTSMetaIndex)
	if got := m.String(); got != "TSMETA_INDEX|ANNOTATION_INDEX" {
		t.Errorf("String() = %q", got)
	}
	if got := Mask(0).String(); got != "none" {
		t.Errorf("String() = %q, want none", got)
	}
	if got := (AudiencePublish | AudienceRPC).String(); got != "publish|rpc" {
		t.Errorf("Audience String() = %q", got)
	}
}
