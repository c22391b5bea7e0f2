package collection

import (
	"strings"

	"github.com/goliatone/go-formset/pkg/holder"
)

// Declared binds a name to a prototype holder. A nil Holder shadows an
// inherited declaration of the same name.
type Declared struct {
	Name   string
	Holder holder.Holder
}

// Declare binds name to a prototype.
func Declare(name string, h holder.Holder) Declared {
	return Declared{Name: strings.TrimSpace(name), Holder: h}
}

// Shadow removes an inherited declaration.
func Shadow(name string) Declared {
	return Declared{Name: strings.TrimSpace(name)}
}

// Describer is implemented by types that declare holders.
type Describer interface {
	Describe() []Declared
}

// Merge folds a chain of declaration lists ordered from the most basic to the
// most derived. A redeclared name keeps its inherited position, a shadowed name
// is removed, and new names append.
func Merge(chain ...[]Declared) []Declared {
	var out []Declared
	for _, level := range chain {
		for _, decl := range level {
			if decl.Name == "" {
				continue
			}
			idx := indexOf(out, decl.Name)
			switch {
			case idx >= 0 && decl.Holder == nil:
				out = append(out[:idx], out[idx+1:]...)
			case idx >= 0:
				out[idx].Holder = decl.Holder
			case decl.Holder != nil:
				out = append(out, decl)
			}
		}
	}
	return out
}

// FromDescribers merges the declarations of a base to derived chain.
func FromDescribers(chain ...Describer) []Declared {
	levels := make([][]Declared, 0, len(chain))
	for _, d := range chain {
		if d != nil {
			levels = append(levels, d.Describe())
		}
	}
	return Merge(levels...)
}

func indexOf(decls []Declared, name string) int {
	for i, decl := range decls {
		if decl.Name == name {
			return i
		}
	}
	return -1
}
