package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/autoarchiver/internal/config"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Named pairs a module instance with its registry name.
type Named[T any] struct {
	Name   string
	Module T
}

// Steps holds the materialized modules of a run, in configured order.
type Steps struct {
	Feeder     Named[module.Feeder]
	Extractors []Named[module.Extractor]
	Enrichers  []Named[module.Enricher]
	Databases  []Named[module.Database]
	Storages   []Named[module.Storage]
	Formatter  *Named[module.Formatter]
}

// names returns every module name used by the steps.
func (s *Steps) names() []string {
	out := []string{s.Feeder.Name}
	for _, e := range s.Extractors {
		out = append(out, e.Name)
	}
	for _, e := range s.Enrichers {
		out = append(out, e.Name)
	}
	for _, d := range s.Databases {
		out = append(out, d.Name)
	}
	for _, st := range s.Storages {
		out = append(out, st.Name)
	}
	if s.Formatter != nil {
		out = append(out, s.Formatter.Name)
	}
	return out
}

// Assemble materializes every module named in steps. All failures are
// collected so a single attempt reports every problem; each matches
// module.ErrSetup.
func Assemble(ctx context.Context, reg *module.Registry, steps config.Steps) (*Steps, error) {
	if err := steps.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	feeders := materialize[module.Feeder](ctx, reg, steps.Feeders, module.CapFeeder, &errs)
	out := &Steps{
		Extractors: materialize[module.Extractor](ctx, reg, steps.Extractors, module.CapExtractor, &errs),
		Enrichers:  materialize[module.Enricher](ctx, reg, steps.Enrichers, module.CapEnricher, &errs),
		Databases:  materialize[module.Database](ctx, reg, steps.Databases, module.CapDatabase, &errs),
		Storages:   materialize[module.Storage](ctx, reg, steps.Storages, module.CapStorage, &errs),
	}
	formatters := materialize[module.Formatter](ctx, reg, steps.Formatters, module.CapFormatter, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	out.Feeder = feeders[0]
	if len(formatters) == 1 {
		out.Formatter = &formatters[0]
	}
	return out, nil
}

func materialize[T any](ctx context.Context, reg *module.Registry, names []string, c module.Capability, errs *[]error) []Named[T] {
	out := make([]Named[T], 0, len(names))
	for _, name := range names {
		inst, err := reg.Materialize(ctx, name)
		if err != nil {
			*errs = append(*errs, err)
			continue
		}
		h, _ := reg.Get(name)
		if !h.Manifest().Has(c) {
			*errs = append(*errs, &module.SetupError{Module: name, Err: fmt.Errorf("listed as %s but its manifest does not declare it", c)})
			continue
		}
		typed, ok := inst.(T)
		if !ok {
			*errs = append(*errs, &module.SetupError{Module: name, Err: fmt.Errorf("does not implement %s", c)})
			continue
		}
		out = append(out, Named[T]{Name: name, Module: typed})
	}
	return out
}
