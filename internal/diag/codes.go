package diag

import (
	"fmt"
)

// Code identifies one diagnostic kind. Codes are grouped by the backend
// pass that owns the violated invariant: no pass reports another pass's
// codes.
type Code uint16

const (
	UnknownCode Code = 0

	// Fragment assembly
	AsmInfo            Code = 3000
	AsmDuplicateSymbol Code = 3001
	AsmUnknownScenario Code = 3002
	AsmBadManifest     Code = 3003
	AsmBadFragment     Code = 3004
	AsmEmptyModule     Code = 3005

	// Monomorphization
	MonoInfo                Code = 4000
	MonoUnresolvedGeneric   Code = 4001
	MonoCyclicInstantiation Code = 4002
	MonoArityMismatch       Code = 4003
	MonoUnknownType         Code = 4004

	// ADT layout & pattern matching
	LayoutInfo                  Code = 5000
	LayoutNonExhaustiveMatch    Code = 5001
	LayoutDuplicateDiscriminant Code = 5002
	LayoutUnknownVariant        Code = 5003
	LayoutRecursiveType         Code = 5004
	LayoutDuplicateVariant      Code = 5005

	// Ownership classification
	OwnInfo                 Code = 6000
	OwnMutateImmutable      Code = 6001
	OwnPointerOutsideUnsafe Code = 6002
	OwnUnknownBinding       Code = 6003
	OwnTemporaryRef         Code = 6004

	// Lowering & emission
	EmitInfo            Code = 7000
	EmitSymbolCollision Code = 7001
	EmitUndeclared      Code = 7002
)

var codeDescription = map[Code]string{
	UnknownCode: "unknown diagnostic",

	AsmInfo:            "fragment assembly note",
	AsmDuplicateSymbol: "duplicate symbol across fragments",
	AsmUnknownScenario: "unknown scenario selector",
	AsmBadManifest:     "malformed module manifest",
	AsmBadFragment:     "malformed fragment",
	AsmEmptyModule:     "module has no fragments",

	MonoInfo:                "monomorphization note",
	MonoUnresolvedGeneric:   "cannot monomorphize: unresolved generic parameter",
	MonoCyclicInstantiation: "cyclic generic instantiation",
	MonoArityMismatch:       "wrong number of type arguments",
	MonoUnknownType:         "reference to unknown type",

	LayoutInfo:                  "layout note",
	LayoutNonExhaustiveMatch:    "pattern match does not cover all variants",
	LayoutDuplicateDiscriminant: "explicit discriminant value used twice",
	LayoutUnknownVariant:        "pattern names unknown variant",
	LayoutRecursiveType:         "recursive type without indirection",
	LayoutDuplicateVariant:      "variant declared twice",

	OwnInfo:                 "ownership note",
	OwnMutateImmutable:      "mutable access to immutable binding",
	OwnPointerOutsideUnsafe: "raw pointer outside unsafe block",
	OwnUnknownBinding:       "reference to unknown binding",
	OwnTemporaryRef:         "reference parameter bound to a temporary",

	EmitInfo:            "emission note",
	EmitSymbolCollision: "two symbols mangle to the same name",
	EmitUndeclared:      "symbol used before declaration",
}

// ID returns the stable renderer-facing identifier, e.g. "ASM3001".
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("ASM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("MONO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ADT%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OWN%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("EMIT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return c.ID()
}
