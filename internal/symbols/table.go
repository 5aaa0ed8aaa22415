package symbols

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Table is a map-backed SymbolTable. Populate it with Add before sharing;
// after that it is read-only and safe for concurrent lookups.
type Table struct {
	byName map[string]UserSymbol
}

// NewTable creates a table holding syms.
// Returns an error if two symbols share a name.
func NewTable(syms ...UserSymbol) (*Table, error) {
	t := &Table{byName: make(map[string]UserSymbol, len(syms))}
	for _, s := range syms {
		if err := t.Add(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable for fixed, known-good inputs (tests and examples).
func MustTable(syms ...UserSymbol) *Table {
	t, err := NewTable(syms...)
	if err != nil {
		panic(err)
	}
	return t
}

// Add registers a symbol. Names are NFC-normalised before storage.
func (t *Table) Add(s UserSymbol) error {
	s = Normalize(s)
	if s.Name == "" {
		return fmt.Errorf("symbol name must be non-empty")
	}
	if !ValidKinds[s.Kind] {
		return fmt.Errorf("symbol %q: unknown kind %q", s.Name, s.Kind)
	}
	if s.Arity < 0 {
		return fmt.Errorf("symbol %q: negative arity %d", s.Name, s.Arity)
	}
	if _, dup := t.byName[s.Name]; dup {
		return fmt.Errorf("duplicate symbol name: %q", s.Name)
	}
	t.byName[s.Name] = s
	return nil
}

// TryGetSymbol implements SymbolTable.
func (t *Table) TryGetSymbol(name string) (UserSymbol, bool) {
	if t == nil {
		return UserSymbol{}, false
	}
	s, ok := t.byName[norm.NFC.String(name)]
	return s, ok
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	return len(t.byName)
}

// Symbols returns every symbol in Compare order.
func (t *Table) Symbols() []UserSymbol {
	out := make([]UserSymbol, 0, len(t.byName))
	for _, s := range t.byName {
		out = append(out, s)
	}
	Sort(out)
	return out
}
