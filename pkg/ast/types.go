package ast

// TypeKind discriminates the closed set of type shapes the elaborator
// understands. Anything else never reaches it: the external type checker
// rejects designs with dynamic or real-typed signals first.
type TypeKind int

const (
	TypeIntegral TypeKind = iota
	TypeUnpackedArray
	TypePackedStruct
	TypeString
	TypeVoid
)

// Type is the resolved, canonical type of an expression or value symbol.
type Type struct {
	Kind   TypeKind
	Name   string
	Width  int            // integral bit width
	Signed bool           // integral signedness
	Range  *ConstantRange // packed range for integrals, index range for arrays
	Elem   *Type          // array element type
	Fields []*FieldSymbol // packed struct members, in declaration order
}

// LogicType builds a packed integral type of the given width. Multi-bit
// types get an implicit [width-1:0] range.
func LogicType(width int, signed bool) *Type {
	t := &Type{Kind: TypeIntegral, Width: width, Signed: signed}
	t.Range = &ConstantRange{Left: width - 1, Right: 0}
	return t
}

// RangedType builds a packed integral type with an explicit declared range.
func RangedType(rng ConstantRange, signed bool) *Type {
	r := rng
	return &Type{Kind: TypeIntegral, Width: rng.Width(), Signed: signed, Range: &r}
}

// ArrayType builds a fixed-size unpacked array type.
func ArrayType(elem *Type, rng ConstantRange) *Type {
	r := rng
	return &Type{Kind: TypeUnpackedArray, Elem: elem, Range: &r}
}

// StructType builds a packed struct type; field bit offsets must already
// be assigned, first field occupying the least significant bits.
func StructType(fields []*FieldSymbol) *Type {
	return &Type{Kind: TypePackedStruct, Fields: fields}
}

func (t *Type) Canonical() *Type { return t }

func (t *Type) IsIntegral() bool { return t.Kind == TypeIntegral || t.Kind == TypePackedStruct }

func (t *Type) IsArray() bool { return t.Kind == TypeUnpackedArray }

func (t *Type) IsSigned() bool { return t.Kind == TypeIntegral && t.Signed }

func (t *Type) IsFixedSize() bool {
	switch t.Kind {
	case TypeIntegral, TypePackedStruct:
		return true
	case TypeUnpackedArray:
		return t.Elem.IsFixedSize()
	}
	return false
}

func (t *Type) HasFixedRange() bool { return t.Range != nil }

func (t *Type) FixedRange() ConstantRange {
	if t.Range == nil {
		return ConstantRange{}
	}
	return *t.Range
}

// BitstreamWidth is the total number of bits the type occupies when packed.
func (t *Type) BitstreamWidth() int {
	switch t.Kind {
	case TypeIntegral:
		return t.Width
	case TypeUnpackedArray:
		return t.Elem.BitstreamWidth() * t.Range.Width()
	case TypePackedStruct:
		total := 0
		for _, f := range t.Fields {
			total += f.Type.BitstreamWidth()
		}
		return total
	}
	return 0
}

// BitWidth matches BitstreamWidth for every packed type the elaborator
// accepts; it exists to mirror the upstream library's query pair.
func (t *Type) BitWidth() int { return t.BitstreamWidth() }

// DefaultValue is the power-on value of a variable of this type: all-X for
// four-state signals, recursively per element for arrays.
func (t *Type) DefaultValue() ConstantValue {
	switch t.Kind {
	case TypeIntegral, TypePackedStruct:
		return IntegerValue(MakeAllX(t.BitstreamWidth()))
	case TypeUnpackedArray:
		elems := make([]ConstantValue, t.Range.Width())
		for i := range elems {
			elems[i] = t.Elem.DefaultValue()
		}
		return UnpackedValue(elems)
	}
	return ConstantValue{}
}
