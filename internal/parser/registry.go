package parser

import "fmt"

// Registry dispatches a file extension to the Parser that handles it.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a Registry with the built-in txt and pdf parsers
// registered (the service's only supported upload formats).
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&TextParser{}, &PDFParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}
