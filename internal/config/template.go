package config

import (
	"bytes"
	_ "embed"
)

//go:embed templates/orchestration.yaml
var template []byte

// Template returns the commented default orchestration document.
func Template() []byte {
	return bytes.Clone(template)
}
