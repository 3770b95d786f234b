// Package transform holds the work functions herald can execute. Each
// transform declares the entity kinds it accepts and a duration
// estimate; the runner validates submissions against both before a job
// exists.
package transform

import (
	"github.com/getherald/herald/internal/model"
)

// Transform is a model.Work with a human description for the manifest.
type Transform interface {
	model.Work
	Description() string
}

// Registry keys transforms by name and keeps registration order for a
// stable manifest.
type Registry struct {
	byName  map[string]Transform
	ordered []Transform
}

func NewRegistry(transforms ...Transform) *Registry {
	r := &Registry{
		byName: make(map[string]Transform, len(transforms)),
	}
	for _, tr := range transforms {
		if _, ok := r.byName[tr.Name()]; ok {
			continue
		}
		r.byName[tr.Name()] = tr
		r.ordered = append(r.ordered, tr)
	}
	return r
}

// FromConfig builds the registry with every built-in transform tuned by cfg.
func FromConfig(cfg model.Transforms) *Registry {
	return NewRegistry(
		NewGeoip(cfg.Geoip),
		NewDNSLookup(cfg.DNSLookup),
		NewPortscan(cfg.Portscan),
	)
}

func (r *Registry) Lookup(name string) (Transform, bool) {
	tr, ok := r.byName[name]
	return tr, ok
}

// All returns transforms in registration order.
func (r *Registry) All() []Transform {
	return r.ordered
}
