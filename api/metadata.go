package api

import (
	"fmt"
	"sort"
)

/*
	VariantKind tags which slot of a Variant is meaningful.

	The names follow the familiar variant type-string shorthand:
	"b" for bool, "u" for an unsigned integer, "s" for a string,
	"as" for a list of strings, and "a(ss)" for a list of string pairs.
*/
type VariantKind string

const (
	VariantBool      VariantKind = "b"
	VariantUint      VariantKind = "u"
	VariantString    VariantKind = "s"
	VariantStrings   VariantKind = "as"
	VariantPairs     VariantKind = "a(ss)"
	variantKindUnset VariantKind = ""
)

// StringPair is the element type of VariantPairs.
type StringPair struct {
	A string `refmt:"a"`
	B string `refmt:"b"`
}

/*
	Variant is a tagged union holding one metadata value.

	Only the slot matching Kind is meaningful; the constructors below
	are the supported way to make one.
*/
type Variant struct {
	Kind  VariantKind  `refmt:"k"`
	Bool  bool         `refmt:"b,omitempty"`
	Uint  uint64       `refmt:"u,omitempty"`
	Str   string       `refmt:"s,omitempty"`
	Strs  []string     `refmt:"as,omitempty"`
	Pairs []StringPair `refmt:"ps,omitempty"`
}

func BoolVariant(b bool) Variant { return Variant{Kind: VariantBool, Bool: b} }
func UintVariant(u uint64) Variant { return Variant{Kind: VariantUint, Uint: u} }
func StringVariant(s string) Variant { return Variant{Kind: VariantString, Str: s} }
func StringsVariant(ss []string) Variant { return Variant{Kind: VariantStrings, Strs: ss} }
func PairsVariant(ps []StringPair) Variant { return Variant{Kind: VariantPairs, Pairs: ps} }

/*
	Metadata is the key-value annotation dictionary carried by a commit.
*/
type Metadata map[string]Variant

/*
	Error returned by the Metadata lookup functions when a key is present
	but holds a value of a different shape than the caller expected
	(or, from the Require* functions, when the key is absent entirely).

	Callers are expected to map this to an error category meaningful to them.
*/
type ErrMetadataShape struct {
	Key  string
	Want VariantKind
	Got  VariantKind // empty if the key was missing.
}

func (e ErrMetadataShape) Error() string {
	if e.Got == variantKindUnset {
		return fmt.Sprintf("metadata key %q is required (expected type %q)", e.Key, e.Want)
	}
	return fmt.Sprintf("metadata key %q has type %q, expected %q", e.Key, e.Got, e.Want)
}

func (md Metadata) lookup(key string, want VariantKind) (Variant, bool, error) {
	v, ok := md[key]
	if !ok {
		return Variant{}, false, nil
	}
	if v.Kind != want {
		got := v.Kind
		if got == variantKindUnset {
			got = "?"
		}
		return Variant{}, true, ErrMetadataShape{key, want, got}
	}
	return v, true, nil
}

func (md Metadata) LookupBool(key string) (bool, bool, error) {
	v, found, err := md.lookup(key, VariantBool)
	return v.Bool, found, err
}

func (md Metadata) LookupUint(key string) (uint64, bool, error) {
	v, found, err := md.lookup(key, VariantUint)
	return v.Uint, found, err
}

func (md Metadata) LookupString(key string) (string, bool, error) {
	v, found, err := md.lookup(key, VariantString)
	return v.Str, found, err
}

func (md Metadata) LookupStrings(key string) ([]string, bool, error) {
	v, found, err := md.lookup(key, VariantStrings)
	return v.Strs, found, err
}

func (md Metadata) LookupPairs(key string) ([]StringPair, bool, error) {
	v, found, err := md.lookup(key, VariantPairs)
	return v.Pairs, found, err
}

// RequireString is LookupString, but absence is an error too.
func (md Metadata) RequireString(key string) (string, error) {
	s, found, err := md.LookupString(key)
	if err == nil && !found {
		err = ErrMetadataShape{Key: key, Want: VariantString}
	}
	return s, err
}

// RequireUint is LookupUint, but absence is an error too.
func (md Metadata) RequireUint(key string) (uint64, error) {
	u, found, err := md.LookupUint(key)
	if err == nil && !found {
		err = ErrMetadataShape{Key: key, Want: VariantUint}
	}
	return u, err
}

// Keys returns the dictionary's keys in sorted order.
func (md Metadata) Keys() []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

/*
	MetadataEntry and MetadataDocument are the persisted form of Metadata.

	A sorted entry list is used instead of a map so that serialization
	is byte-for-byte deterministic, which matters since the serial form
	is hashed as part of the commit object.
*/
type MetadataEntry struct {
	Key   string  `refmt:"key"`
	Value Variant `refmt:"value"`
}

type MetadataDocument struct {
	Entries []MetadataEntry `refmt:"metadata"`
}

func (md Metadata) Document() MetadataDocument {
	doc := MetadataDocument{Entries: make([]MetadataEntry, 0, len(md))}
	for _, k := range md.Keys() {
		doc.Entries = append(doc.Entries, MetadataEntry{k, md[k]})
	}
	return doc
}

// Metadata rebuilds the dictionary.  Duplicate keys are refused.
func (doc MetadataDocument) Metadata() (Metadata, error) {
	md := make(Metadata, len(doc.Entries))
	for _, ent := range doc.Entries {
		if _, exists := md[ent.Key]; exists {
			return nil, fmt.Errorf("metadata key %q repeated", ent.Key)
		}
		md[ent.Key] = ent.Value
	}
	return md, nil
}
