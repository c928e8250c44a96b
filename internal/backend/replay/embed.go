package replay

import (
	_ "embed"
)

//go:embed scenarios/demo.yaml
var demoScenario []byte

// Demo returns a backend playing the bundled demo scenario.
func Demo() (*Backend, error) {
	sc, err := Parse(demoScenario)
	if err != nil {
		return nil, err
	}
	return New(sc)
}
