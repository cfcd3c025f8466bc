package catalog

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML board spec. Unknown keys are rejected.
func Parse(data []byte) (Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return Spec{}, err
	}
	return spec, nil
}

// Load reads the YAML spec at path and builds its catalogue.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	cat, err := Build(spec)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return cat, nil
}
