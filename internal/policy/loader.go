package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/davidahmann/geogate/internal/crypto"
	"gopkg.in/yaml.v3"
)

type LoadedPolicy struct {
	Policy Policy
	Hash   string
	Bytes  []byte
}

// LoadPolicy loads a YAML policy and computes its hash from raw bytes.
func LoadPolicy(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes data on top of Default, so omitted keys keep their
// built-in values. Unknown keys are rejected.
func ParsePolicy(data []byte) (LoadedPolicy, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return LoadedPolicy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return LoadedPolicy{}, err
	}

	return LoadedPolicy{
		Policy: p,
		Hash:   crypto.DigestWithPrefix(data),
		Bytes:  data,
	}, nil
}

// Builtin wraps Default as a LoadedPolicy. The hash covers the YAML
// rendering of the defaults.
func Builtin() LoadedPolicy {
	p := Default()
	data, err := yaml.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("marshal default policy: %v", err))
	}
	return LoadedPolicy{Policy: p, Hash: crypto.DigestWithPrefix(data), Bytes: data}
}
