// Package types defines Mluva's closed DataType sum and its runtime Value
// counterpart.
package types

import "fmt"

// Tag identifies a DataType variant.
type Tag int

const (
	Void Tag = iota
	Int
	Float
	Bool
	String
	List
)

// DataType is the closed sum of Mluva's nominal types. List carries an
// optional item type: List{Item: nil} is a wildcard used only in method
// dispatch (see (DataType).MatchesType); a concrete list type always has
// Item set.
type DataType struct {
	Tag  Tag
	Item *DataType
}

func Of(tag Tag) DataType { return DataType{Tag: tag} }

func ListOf(item *DataType) DataType { return DataType{Tag: List, Item: item} }

// Equal reports structural equality. Non-list variants compare by Tag
// alone; List variants additionally compare Item (both present, recursively
// equal). A wildcard List is never Equal, only Matches, to anything.
func (d DataType) Equal(o DataType) bool {
	if d.Tag != o.Tag {
		return false
	}
	if d.Tag != List {
		return true
	}
	if d.Item == nil || o.Item == nil {
		return false
	}
	return d.Item.Equal(*o.Item)
}

// MatchesType implements the method-dispatch matching rule: a wildcard
// List(None) matches any concrete List(Some) one-way, and otherwise behaves
// like Equal. This is the rule method tables (e.g. String.length) use to
// decide whether a receiver's type admits a method.
func (d DataType) MatchesType(o DataType) bool {
	if d.Tag == List && o.Tag == List {
		if d.Item == nil || o.Item == nil {
			return true
		}
		return d.Item.MatchesType(*o.Item)
	}
	return d.Equal(o)
}

func (d DataType) IsNumeric() bool {
	return d.Tag == Int || d.Tag == Float
}

func (d DataType) String() string {
	switch d.Tag {
	case Void:
		return "Void"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case List:
		if d.Item == nil {
			return "List(?)"
		}
		return fmt.Sprintf("List(%s)", d.Item.String())
	default:
		return "Unknown"
	}
}

// Value is a tagged runtime value parallel to DataType. Values have value
// semantics: copying a Value copies its payload (strings included; Go
// strings are already immutable/shared-safe, so a plain assignment is a
// correct value-semantics copy).
type Value struct {
	Tag   Tag
	I     int32
	F     float64
	B     bool
	S     string
}

func VoidValue() Value           { return Value{Tag: Void} }
func IntValue(i int32) Value     { return Value{Tag: Int, I: i} }
func FloatValue(f float64) Value { return Value{Tag: Float, F: f} }
func BoolValue(b bool) Value     { return Value{Tag: Bool, B: b} }
func StringValue(s string) Value { return Value{Tag: String, S: s} }

func (v Value) DataType() DataType { return DataType{Tag: v.Tag} }

func (v Value) String() string {
	switch v.Tag {
	case Void:
		return "Void"
	case Int:
		return fmt.Sprintf("%d", v.I)
	case Float:
		return fmt.Sprintf("%g", v.F)
	case Bool:
		return fmt.Sprintf("%t", v.B)
	case String:
		return v.S
	default:
		return "<invalid>"
	}
}

// Equal implements the structural equality used by Equal/NotEqual; both
// values must share a DataType for this to be meaningful (the type checker
// guarantees that at every call site).
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case Void:
		return true
	case Int:
		return v.I == o.I
	case Float:
		return v.F == o.F
	case Bool:
		return v.B == o.B
	case String:
		return v.S == o.S
	default:
		return false
	}
}
