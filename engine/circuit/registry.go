package circuit

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/sequentry/sequentry/engine/core"
	str2duration "github.com/xhit/go-str2duration/v2"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type catalogFile struct {
	Circuits []catalogEntry `yaml:"circuits"`
}

type catalogEntry struct {
	ID          string `yaml:"id"`
	Ordinal     int    `yaml:"ordinal"`
	Description string `yaml:"description"`
	Guard       string `yaml:"guard"`
	Timeout     string `yaml:"timeout"`
	Required    bool   `yaml:"required"`
}

// Registry is the static circuit catalog. Lookups are read-only after Load,
// so the registry is safe for concurrent use.
type Registry struct {
	byID    map[ID]*Definition
	ordered []*Definition
}

// Default loads the registry from the embedded catalog.
func Default() (*Registry, error) {
	return Load(embeddedCatalog)
}

// Load decodes a catalog document and validates that ids are unique and
// ordinals form a strict ascending sequence.
func Load(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode circuit catalog: %w", err)
	}
	if len(file.Circuits) == 0 {
		return nil, fmt.Errorf("circuit catalog is empty")
	}
	reg := &Registry{
		byID:    make(map[ID]*Definition, len(file.Circuits)),
		ordered: make([]*Definition, 0, len(file.Circuits)),
	}
	for i := range file.Circuits {
		def, err := file.Circuits[i].toDefinition()
		if err != nil {
			return nil, err
		}
		if _, exists := reg.byID[def.ID]; exists {
			return nil, fmt.Errorf("duplicate circuit id %q in catalog", def.ID)
		}
		reg.byID[def.ID] = def
		reg.ordered = append(reg.ordered, def)
	}
	sort.Slice(reg.ordered, func(i, j int) bool {
		return reg.ordered[i].Ordinal < reg.ordered[j].Ordinal
	})
	for i := 1; i < len(reg.ordered); i++ {
		if reg.ordered[i].Ordinal == reg.ordered[i-1].Ordinal {
			return nil, fmt.Errorf(
				"circuits %q and %q share ordinal %d",
				reg.ordered[i-1].ID, reg.ordered[i].ID, reg.ordered[i].Ordinal,
			)
		}
	}
	return reg, nil
}

func (e *catalogEntry) toDefinition() (*Definition, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("circuit catalog entry missing id")
	}
	if e.Ordinal <= 0 {
		return nil, fmt.Errorf("circuit %q has invalid ordinal %d", e.ID, e.Ordinal)
	}
	def := &Definition{
		ID:          ID(e.ID),
		Ordinal:     e.Ordinal,
		Description: e.Description,
		Guard:       e.Guard,
		Required:    e.Required,
	}
	if e.Timeout != "" {
		timeout, err := str2duration.ParseDuration(e.Timeout)
		if err != nil {
			return nil, fmt.Errorf("circuit %q has invalid timeout %q: %w", e.ID, e.Timeout, err)
		}
		def.Timeout = timeout
	}
	return def, nil
}

// Get returns the definition for id or an UNKNOWN_CIRCUIT error.
func (r *Registry) Get(id ID) (*Definition, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("%w: %s", ErrUnknownCircuit, id),
			ErrCodeUnknownCircuit,
			map[string]any{"circuit_id": id.String()},
		)
	}
	return def, nil
}

// All returns every circuit id in ordinal order.
func (r *Registry) All() []ID {
	ids := make([]ID, 0, len(r.ordered))
	for _, def := range r.ordered {
		ids = append(ids, def.ID)
	}
	return ids
}

// Required returns the circuits every delivery workflow must pass, in
// ordinal order.
func (r *Registry) Required() []ID {
	ids := make([]ID, 0, len(r.ordered))
	for _, def := range r.ordered {
		if def.Required {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// ValidateSequence rejects sequences that reference unknown circuits, run
// out of ordinal order, or skip a required circuit inside their span.
func (r *Registry) ValidateSequence(sequence []ID) error {
	if len(sequence) == 0 {
		return core.NewError(
			fmt.Errorf("%w: empty sequence", ErrSequenceOrder),
			ErrCodeValidationFailed,
			nil,
		)
	}
	defs := make([]*Definition, len(sequence))
	for i, id := range sequence {
		def, err := r.Get(id)
		if err != nil {
			return err
		}
		defs[i] = def
	}
	for i := 1; i < len(defs); i++ {
		prev, cur := defs[i-1], defs[i]
		if cur.Ordinal <= prev.Ordinal {
			return core.NewError(
				fmt.Errorf("%w: %s cannot follow %s", ErrSequenceOrder, cur.ID, prev.ID),
				ErrCodeValidationFailed,
				map[string]any{"circuit_id": cur.ID.String(), "after": prev.ID.String()},
			)
		}
		if skipped := r.requiredBetween(prev.Ordinal, cur.Ordinal); skipped != nil {
			return core.NewError(
				fmt.Errorf("%w: required circuit %s skipped", ErrSequenceOrder, skipped.ID),
				ErrCodeValidationFailed,
				map[string]any{"circuit_id": skipped.ID.String()},
			)
		}
	}
	return nil
}

func (r *Registry) requiredBetween(low, high int) *Definition {
	for _, def := range r.ordered {
		if def.Required && def.Ordinal > low && def.Ordinal < high {
			return def
		}
	}
	return nil
}
