package bsatn

// Tag is the one-byte wire discriminator that precedes every encoded value,
// per spec.md §4.1 and §6. TagI128 through TagU256 are reserved extensions
// not produced in v1.
type Tag byte

const (
	TagBoolFalse Tag = 0
	TagBoolTrue  Tag = 1
	TagI8        Tag = 2
	TagU8        Tag = 3
	TagI16       Tag = 4
	TagU16       Tag = 5
	TagI32       Tag = 6
	TagU32       Tag = 7
	TagI64       Tag = 8
	TagU64       Tag = 9
	TagF32       Tag = 10
	TagF64       Tag = 11
	TagString    Tag = 12
	TagBytes     Tag = 13
	TagList      Tag = 14
	TagOptNone   Tag = 15
	TagOptSome   Tag = 16
	TagStruct    Tag = 17
	TagEnum      Tag = 18
	TagArray     Tag = 19
	TagMap       Tag = 20
	TagIdentity  Tag = 21
	TagAddress   Tag = 22
	TagTimestamp Tag = 23
	TagDuration  Tag = 24
	TagI128      Tag = 25 // reserved, not produced in v1
	TagU128      Tag = 26 // reserved, not produced in v1
	TagI256      Tag = 27 // reserved, not produced in v1
	TagU256      Tag = 28 // reserved, not produced in v1
)

// Kind identifies the shape an AlgebraicType describes.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindString
	KindBytes
	KindProduct
	KindSum
	KindArray // fixed-size array of Elem, length ArrayLen
	KindList  // variable-length vector of Elem
	KindMap
	KindOption
	KindRef // named reference, resolved via a *Registry
	KindIdentity
	KindAddress
	KindTimestamp
	KindDuration
)

// Field is one named, ordered member of a product (struct) type.
type Field struct {
	Name string
	Type AlgebraicType
}

// Variant is one named arm of a sum (enum) type, selected on the wire by a
// one-byte index matching its position in Variants.
type Variant struct {
	Name string
	Type AlgebraicType
}

// AlgebraicType is the self-describing type descriptor spec.md §3 defines:
// primitives, composites (product/sum/array/map/option), domain types
// (identity/address/timestamp/duration), and named references resolved
// through a Registry. It is a closed tagged tree, not an interface
// hierarchy, matching the "polymorphism over shape" design note in §9.
type AlgebraicType struct {
	Kind     Kind
	Elem     *AlgebraicType // Array, List, Option, Map (value type)
	Key      *AlgebraicType // Map key type
	ArrayLen int            // fixed element count, Kind == KindArray
	Fields   []Field        // Kind == KindProduct
	Variants []Variant      // Kind == KindSum
	Ref      string         // Kind == KindRef, name looked up in a Registry
}

func Bool() AlgebraicType   { return AlgebraicType{Kind: KindBool} }
func I8() AlgebraicType     { return AlgebraicType{Kind: KindI8} }
func U8() AlgebraicType     { return AlgebraicType{Kind: KindU8} }
func I16() AlgebraicType    { return AlgebraicType{Kind: KindI16} }
func U16() AlgebraicType    { return AlgebraicType{Kind: KindU16} }
func I32() AlgebraicType    { return AlgebraicType{Kind: KindI32} }
func U32() AlgebraicType    { return AlgebraicType{Kind: KindU32} }
func I64() AlgebraicType    { return AlgebraicType{Kind: KindI64} }
func U64() AlgebraicType    { return AlgebraicType{Kind: KindU64} }
func F32() AlgebraicType    { return AlgebraicType{Kind: KindF32} }
func F64() AlgebraicType    { return AlgebraicType{Kind: KindF64} }
func String() AlgebraicType { return AlgebraicType{Kind: KindString} }
func Bytes() AlgebraicType  { return AlgebraicType{Kind: KindBytes} }
func Identity() AlgebraicType { return AlgebraicType{Kind: KindIdentity} }
func Address() AlgebraicType  { return AlgebraicType{Kind: KindAddress} }
func TimestampType() AlgebraicType { return AlgebraicType{Kind: KindTimestamp} }
func DurationType() AlgebraicType  { return AlgebraicType{Kind: KindDuration} }

func Product(fields ...Field) AlgebraicType {
	return AlgebraicType{Kind: KindProduct, Fields: fields}
}

func Sum(variants ...Variant) AlgebraicType {
	return AlgebraicType{Kind: KindSum, Variants: variants}
}

func Array(elem AlgebraicType, length int) AlgebraicType {
	return AlgebraicType{Kind: KindArray, Elem: &elem, ArrayLen: length}
}

func List(elem AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindList, Elem: &elem}
}

func Map(key, value AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindMap, Key: &key, Elem: &value}
}

func Option(elem AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindOption, Elem: &elem}
}

func Ref(name string) AlgebraicType {
	return AlgebraicType{Kind: KindRef, Ref: name}
}

// Registry is the named-type arena spec.md §9 calls for: "if the target
// language lacks multiple-ownership semantics, use an arena of types
// indexed by a small integer". Go's AlgebraicType already owns its
// children by value/pointer, so the registry is a simple name->type map
// used only to resolve KindRef at encode/decode time, which also lets
// cyclic type graphs (a product referencing itself) be expressed.
type Registry struct {
	types map[string]AlgebraicType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]AlgebraicType)}
}

func (r *Registry) Register(name string, t AlgebraicType) {
	r.types[name] = t
}

func (r *Registry) Resolve(name string) (AlgebraicType, bool) {
	t, ok := r.types[name]
	return t, ok
}
