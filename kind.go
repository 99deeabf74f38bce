package tsdispatch

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxKinds is the number of kinds a Mask can address.
const MaxKinds = 64

// Audience is a set of host-facing audiences a kind is meant for.
type Audience uint8

const (
	AudienceSearch Audience = 1 << iota
	AudiencePublish
	AudienceRPC
)

// Has reports whether every audience in o is also in a.
func (a Audience) Has(o Audience) bool {
	return a&o == o
}

func (a Audience) String() string {
	var parts []string
	if a.Has(AudienceSearch) {
		parts = append(parts, "search")
	}
	if a.Has(AudiencePublish) {
		parts = append(parts, "publish")
	}
	if a.Has(AudienceRPC) {
		parts = append(parts, "rpc")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Kind identifies one event type. Its value is the kind's ordinal.
type Kind uint8

// Kinds in ordinal order. Reordering changes every flag.
const (
	KindTSMetaIndex Kind = iota
	KindTSMetaDelete
	KindUIDMetaIndex
	KindUIDMetaDelete
	KindAnnotationIndex
	KindAnnotationDelete
	KindSearchQuery
	KindDataPointLong
	KindDataPointDouble
	KindAnnotationPublish
)

type kindDef struct {
	kind     Kind
	name     string
	audience Audience
}

var kindDefs = []kindDef{
	{KindTSMetaIndex, "TSMETA_INDEX", AudienceSearch},
	{KindTSMetaDelete, "TSMETA_DELETE", AudienceSearch},
	{KindUIDMetaIndex, "UIDMETA_INDEX", AudienceSearch},
	{KindUIDMetaDelete, "UIDMETA_DELETE", AudienceSearch},
	{KindAnnotationIndex, "ANNOTATION_INDEX", AudienceSearch},
	{KindAnnotationDelete, "ANNOTATION_DELETE", AudienceSearch},
	{KindSearchQuery, "SEARCH", AudienceSearch},
	{KindDataPointLong, "DPOINT_LONG", AudiencePublish | AudienceRPC},
	{KindDataPointDouble, "DPOINT_DOUBLE", AudiencePublish | AudienceRPC},
	{KindAnnotationPublish, "ANNOTATION_PUBLISH", AudiencePublish | AudienceRPC},
}

// kindTable is the immutable registry built from kindDefs.
type kindTable struct {
	kinds     []Kind
	names     []string
	audiences []Audience
	byName    map[string]Kind
	search    Mask
	publish   Mask
	rpc       Mask
	all       Mask
}

var registry = mustBuildKindTable(kindDefs)

func buildKindTable(defs []kindDef) (*kindTable, error) {
	if len(defs) > MaxKinds {
		return nil, fmt.Errorf("%w: %d kinds exceed mask width %d", ErrConfig, len(defs), MaxKinds)
	}
	t := &kindTable{
		kinds:     make([]Kind, len(defs)),
		names:     make([]string, len(defs)),
		audiences: make([]Audience, len(defs)),
		byName:    make(map[string]Kind, len(defs)),
	}
	for i, d := range defs {
		if int(d.kind) != i {
			return nil, fmt.Errorf("%w: kind %q has ordinal %d at position %d", ErrConfig, d.name, d.kind, i)
		}
		key := strings.ToUpper(d.name)
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("%w: duplicate kind name %q", ErrConfig, d.name)
		}
		t.kinds[i] = d.kind
		t.names[i] = d.name
		t.audiences[i] = d.audience
		t.byName[key] = d.kind

		flag := Mask(1) << uint(i)
		t.all |= flag
		if d.audience.Has(AudienceSearch) {
			t.search |= flag
		}
		if d.audience.Has(AudiencePublish) {
			t.publish |= flag
		}
		if d.audience.Has(AudienceRPC) {
			t.rpc |= flag
		}
	}
	return t, nil
}

func mustBuildKindTable(defs []kindDef) *kindTable {
	t, err := buildKindTable(defs)
	if err != nil {
		panic(err)
	}
	return t
}

// NumKinds returns the number of defined kinds.
func NumKinds() int {
	return len(registry.kinds)
}

// Kinds returns every kind in ordinal order.
func Kinds() []Kind {
	out := make([]Kind, len(registry.kinds))
	copy(out, registry.kinds)
	return out
}

// KindByOrdinal returns the kind with the given ordinal.
func KindByOrdinal(ordinal int) (Kind, error) {
	if ordinal < 0 || ordinal >= len(registry.kinds) {
		return 0, fmt.Errorf("%w: ordinal %d out of range [0,%d)", ErrUnknownKind, ordinal, len(registry.kinds))
	}
	return registry.kinds[ordinal], nil
}

// KindByName looks a kind up by name, ignoring case.
func KindByName(name string) (Kind, error) {
	k, ok := registry.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	return int(k) < len(registry.kinds)
}

// Ordinal returns the kind's position in the registry.
func (k Kind) Ordinal() int {
	return int(k)
}

// Flag returns the single bit for k, 0 for an undefined kind.
func (k Kind) Flag() Mask {
	if !k.Valid() {
		return 0
	}
	return Mask(1) << uint(k)
}

// Audience returns the audiences k is meant for.
func (k Kind) Audience() Audience {
	if !k.Valid() {
		return 0
	}
	return registry.audiences[k]
}

func (k Kind) IsForSearch() bool  { return k.Audience().Has(AudienceSearch) }
func (k Kind) IsForPublish() bool { return k.Audience().Has(AudiencePublish) }
func (k Kind) IsForRPC() bool     { return k.Audience().Has(AudienceRPC) }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return registry.names[k]
}

// Mask is a subscription: the OR of the flags of the kinds a consumer wants.
type Mask uint64

// MaskOf combines the flags of kinds.
func MaskOf(kinds ...Kind) Mask {
	var m Mask
	for _, k := range kinds {
		m |= k.Flag()
	}
	return m
}

// SearchMask covers every search-audience kind.
func SearchMask() Mask { return registry.search }

// PublishMask covers every publish-audience kind.
func PublishMask() Mask { return registry.publish }

// RPCMask covers every RPC-audience kind.
func RPCMask() Mask { return registry.rpc }

// AllMask covers every kind.
func AllMask() Mask { return registry.all }

// Enabled reports whether m has k's bit set.
func (m Mask) Enabled(k Kind) bool {
	flag := k.Flag()
	return flag != 0 && m&flag == flag
}

// Kinds returns the defined kinds selected by m, in ordinal order.
func (m Mask) Kinds() []Kind {
	out := make([]Kind, 0, bits.OnesCount64(uint64(m&registry.all)))
	for _, k := range registry.kinds {
		if m.Enabled(k) {
			out = append(out, k)
		}
	}
	return out
}

func (m Mask) String() string {
	kinds := m.Kinds()
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}
