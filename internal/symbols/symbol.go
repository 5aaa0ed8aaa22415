// Package symbols defines resolved user symbols and the read-only lookup
// capability the analysis layer receives from name resolution.
package symbols

import (
	"cmp"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// SymbolKind classifies a user symbol.
type SymbolKind string

const (
	ConSymb   SymbolKind = "constructor"
	MapSymb   SymbolKind = "map"
	UnnSymb   SymbolKind = "union"
	BaseSymb  SymbolKind = "base"
	ConstSymb SymbolKind = "constant"
)

// ValidKinds lists the symbol kinds the front end accepts.
var ValidKinds = map[SymbolKind]bool{
	ConSymb:   true,
	MapSymb:   true,
	UnnSymb:   true,
	BaseSymb:  true,
	ConstSymb: true,
}

// kindRank fixes the tie-break order between kinds.
var kindRank = map[SymbolKind]int{
	ConSymb:   0,
	MapSymb:   1,
	UnnSymb:   2,
	BaseSymb:  3,
	ConstSymb: 4,
}

// UserSymbol is a resolved, user-visible symbol.
type UserSymbol struct {
	Name      string     `json:"name" yaml:"name"`
	Kind      SymbolKind `json:"kind" yaml:"kind"`
	Arity     int        `json:"arity" yaml:"arity"`
	IsAutoGen bool       `json:"auto_gen,omitempty" yaml:"auto_gen,omitempty"`
}

// Instantiable reports whether the search executor can grant instances of the symbol.
// Only constructor and map symbols qualify.
func (s UserSymbol) Instantiable() bool {
	return s.Kind == ConSymb || s.Kind == MapSymb
}

func (s UserSymbol) String() string {
	return fmt.Sprintf("%s/%d(%s)", s.Name, s.Arity, s.Kind)
}

// SymbolTable resolves names to symbols. Implementations must be safe for
// concurrent reads.
type SymbolTable interface {
	TryGetSymbol(name string) (UserSymbol, bool)
}

// Compare is the total order over symbols used wherever iteration order must be
// reproducible.
//
// Ordering:
//  1. NFC-normalised name, compared by UTF-16 code units
//  2. kind (constructor < map < union < base < constant < unknown kinds by name)
//  3. arity
//  4. auto-generated symbols after user-written ones
//
// Compare(a, b) == 0 exactly when a and b agree on every field after normalisation.
func Compare(a, b UserSymbol) int {
	if c := compareNames(a.Name, b.Name); c != 0 {
		return c
	}
	if c := compareKinds(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Arity, b.Arity); c != 0 {
		return c
	}
	switch {
	case a.IsAutoGen == b.IsAutoGen:
		return 0
	case b.IsAutoGen:
		return -1
	default:
		return 1
	}
}

// Normalize returns s with its name in NFC form.
func Normalize(s UserSymbol) UserSymbol {
	s.Name = norm.NFC.String(s.Name)
	return s
}

// Sort orders syms in place by Compare.
func Sort(syms []UserSymbol) {
	slices.SortStableFunc(syms, Compare)
}

func compareKinds(a, b SymbolKind) int {
	ra, oka := kindRank[a]
	rb, okb := kindRank[b]
	switch {
	case oka && okb:
		return cmp.Compare(ra, rb)
	case oka:
		return -1
	case okb:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// compareNames compares NFC-normalised names by UTF-16 code units, the same
// ordering canonical JSON uses for object keys. Byte order on UTF-8 differs
// for supplementary-plane characters.
func compareNames(a, b string) int {
	if a == b {
		return 0
	}
	a16 := utf16.Encode([]rune(norm.NFC.String(a)))
	b16 := utf16.Encode([]rune(norm.NFC.String(b)))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			return cmp.Compare(a16[i], b16[i])
		}
	}
	return cmp.Compare(len(a16), len(b16))
}
