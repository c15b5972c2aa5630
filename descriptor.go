package pipeline

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// ElementDesc describes an element of pipeline.
type ElementDesc struct {
	Factory    string         `yaml:"factory"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Description describes a whole pipeline. Elements are linked in order.
type Description struct {
	Name     string        `yaml:"name,omitempty"`
	Elements []ElementDesc `yaml:"elements"`
}

// LoadDescription decodes YAML description:
//
//	name: demo
//	elements:
//	  - factory: videotestsrc
//	    name: test_src
//	    properties:
//	      num-buffers: 100
//	  - factory: autovideosink
//	    name: test_sink
func LoadDescription(r io.Reader) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("error decoding description: %w", err)
	}
	if len(d.Elements) == 0 {
		return nil, ErrEmptyPipeline
	}
	return &d, nil
}

// Build makes elements, adds them into a new pipeline and links them in
// order. Properties are set in order of their names.
func (c *Context) Build(d *Description) (*Pipeline, error) {
	if len(d.Elements) == 0 {
		return nil, ErrEmptyPipeline
	}
	elements := make([]Element, 0, len(d.Elements))
	for _, desc := range d.Elements {
		e, err := c.MakeElement(desc.Factory, desc.Name)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(desc.Properties))
		for k := range desc.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := e.SetProperty(k, desc.Properties[k]); err != nil {
				return nil, err
			}
		}
		elements = append(elements, e)
	}

	p, err := c.NewPipeline(d.Name)
	if err != nil {
		return nil, err
	}
	if err := p.Add(elements...); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.LinkMany(elements...); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
