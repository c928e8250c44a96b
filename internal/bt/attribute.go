package bt

import (
	"fmt"
	"strings"
)

// Universal SDP attribute ids.
const (
	AttrServiceRecordHandle       uint16 = 0x0000
	AttrServiceClassIDList        uint16 = 0x0001
	AttrServiceID                 uint16 = 0x0003
	AttrProtocolDescriptorList    uint16 = 0x0004
	AttrBrowseGroupList           uint16 = 0x0005
	AttrBluetoothProfileDescList  uint16 = 0x0009
	AttrDocumentationURL          uint16 = 0x000A
	AttrServiceName               uint16 = 0x0100
	AttrServiceDescription        uint16 = 0x0101
	AttrServiceProvider           uint16 = 0x0102
	AttrAdditionalProtocolDescs   uint16 = 0x000D
)

// AttributeValue is one SDP data element. The concrete types are Uint, Int,
// Bool, String, URL, UUIDValue, Sequence and Alternative.
type AttributeValue interface {
	attributeValue()
	String() string
}

type (
	Uint        uint64
	Int         int64
	Bool        bool
	String      string
	URL         string
	UUIDValue   UUID
	Sequence    []AttributeValue
	Alternative []AttributeValue
)

func (Uint) attributeValue()        {}
func (Int) attributeValue()         {}
func (Bool) attributeValue()        {}
func (String) attributeValue()      {}
func (URL) attributeValue()         {}
func (UUIDValue) attributeValue()   {}
func (Sequence) attributeValue()    {}
func (Alternative) attributeValue() {}

func (v Uint) String() string      { return fmt.Sprintf("%d", uint64(v)) }
func (v Int) String() string       { return fmt.Sprintf("%d", int64(v)) }
func (v Bool) String() string      { return fmt.Sprintf("%t", bool(v)) }
func (v String) String() string    { return string(v) }
func (v URL) String() string       { return string(v) }
func (v UUIDValue) String() string { return UUID(v).String() }

func (v Sequence) String() string    { return "<" + joinValues(v) + ">" }
func (v Alternative) String() string { return "{" + joinValues(v) + "}" }

func joinValues(values []AttributeValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

// EqualValues reports whether a and b are structurally equal.
func EqualValues(a, b AttributeValue) bool {
	switch av := a.(type) {
	case Sequence:
		bv, ok := b.(Sequence)
		return ok && equalLists(av, bv)
	case Alternative:
		bv, ok := b.(Alternative)
		return ok && equalLists(av, bv)
	default:
		return a == b
	}
}

func equalLists(a, b []AttributeValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualValues(a[i], b[i]) {
			return false
		}
	}
	return true
}

// uuidsOf collects the UUID elements of a sequence, one level deep.
func uuidsOf(v AttributeValue) []UUID {
	seq, ok := v.(Sequence)
	if !ok {
		return nil
	}
	var out []UUID
	for _, item := range seq {
		if u, ok := item.(UUIDValue); ok {
			out = append(out, UUID(u))
		}
	}
	return out
}
