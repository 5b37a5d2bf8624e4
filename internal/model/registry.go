package model

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrSourceNotFound is returned when no source matches the requested id.
	ErrSourceNotFound = errors.New("source not found")
	// ErrModelNotFound is returned when a source holds no matching model.
	ErrModelNotFound = errors.New("model not found")
)

// Source groups the models offered by one data supplier.
type Source struct {
	ID     string
	Name   string
	models map[string]Model
}

// NewSource creates a source holding the given models.
func NewSource(id, name string, models ...Model) *Source {
	s := &Source{ID: id, Name: name, models: make(map[string]Model, len(models))}
	for _, m := range models {
		s.models[m.Code()] = m
	}
	return s
}

// Model returns the model with the given code.
func (s *Source) Model(code string) (Model, error) {
	m, ok := s.models[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrModelNotFound, s.ID, code)
	}
	return m, nil
}

// Models returns all models of the source, sorted by code.
func (s *Source) Models() []Model {
	out := make([]Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

// Registry is an explicitly constructed catalog of sources. It is injected
// into the controller rather than living as process-wide state, so each
// controller instance has an independent, testable lifecycle.
type Registry struct {
	sources map[string]*Source
	order   []string
}

// NewRegistry creates a registry over the given sources.
func NewRegistry(sources ...*Source) *Registry {
	r := &Registry{sources: make(map[string]*Source, len(sources))}
	for _, s := range sources {
		if _, ok := r.sources[s.ID]; !ok {
			r.order = append(r.order, s.ID)
		}
		r.sources[s.ID] = s
	}
	return r
}

// Source returns the source with the given id.
func (r *Registry) Source(id string) (*Source, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	return s, nil
}

// Sources returns all sources in registration order.
func (r *Registry) Sources() []*Source {
	out := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// Model resolves a model by source and model code.
func (r *Registry) Model(sourceID, modelCode string) (Model, error) {
	s, err := r.Source(sourceID)
	if err != nil {
		return nil, err
	}
	return s.Model(modelCode)
}
