package ai

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Descriptor is client-side presentation metadata for a function. Pricing
// and availability always come from the server catalog.
type Descriptor struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	InputLabel  string   `yaml:"input_label"`
	Placeholder string   `yaml:"placeholder"`
	Upload      bool     `yaml:"upload"`
	Accepts     []string `yaml:"accepts,omitempty"`
	Examples    []string `yaml:"examples,omitempty"`
}

var (
	descriptorsOnce sync.Once
	descriptors     map[string]Descriptor
	descriptorsErr  error
)

func loadDescriptors() (map[string]Descriptor, error) {
	descriptorsOnce.Do(func() {
		var doc struct {
			Functions []Descriptor `yaml:"functions"`
		}
		if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
			descriptorsErr = fmt.Errorf("parse function descriptors: %w", err)
			return
		}
		descriptors = make(map[string]Descriptor, len(doc.Functions))
		for _, d := range doc.Functions {
			descriptors[d.Name] = d
		}
	})
	return descriptors, descriptorsErr
}

// DescriptorFor returns the metadata for a function name.
func DescriptorFor(name string) (Descriptor, bool) {
	all, err := loadDescriptors()
	if err != nil {
		return Descriptor{}, false
	}
	d, ok := all[name]
	return d, ok
}

// Descriptors lists every known descriptor ordered by category then name.
func Descriptors() ([]Descriptor, error) {
	all, err := loadDescriptors()
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(all))
	for _, d := range all {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
