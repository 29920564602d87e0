package analyzer

import (
	"context"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/filter"
)

// FilterAnalyzer drops events rejected by a filter expression. Stateless;
// one event in, zero or one event out.
type FilterAnalyzer struct {
	filter   *filter.Filter
	capacity int
}

// NewFilter wraps a parsed filter as an analyzer.
func NewFilter(f *filter.Filter, capacity int) *FilterAnalyzer {
	if capacity <= 0 {
		capacity = DefaultLinkCapacity
	}
	return &FilterAnalyzer{filter: f, capacity: capacity}
}

// Name implements Analyzer.
func (a *FilterAnalyzer) Name() string { return "filter:" + a.filter.Name() }

// Filter returns the underlying filter, for metrics access.
func (a *FilterAnalyzer) Filter() *filter.Filter { return a.filter }

// Process implements Analyzer.
func (a *FilterAnalyzer) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	return transform(ctx, in, a.capacity, func(e event.Event, emit func(event.Event)) {
		if a.filter.Match(e) {
			emit(e)
		}
	})
}
