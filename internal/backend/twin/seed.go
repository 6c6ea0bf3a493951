package twin

import (
	_ "embed"
	"fmt"
)

//go:embed seed.yaml
var defaultSeed []byte

// LoadDefault replaces the state with the bundled demo fixture.
func (s *Store) LoadDefault() error {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		return fmt.Errorf("twin: default seed: %w", err)
	}
	s.Load(seed)
	return nil
}
