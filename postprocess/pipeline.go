package postprocess

import (
	"context"
	"fmt"
)

// Processor is a function that transforms text
type Processor func(ctx context.Context, text string) (string, error)

// Pipeline runs a series of processors in sequence
type Pipeline struct {
	processors []Processor
}

// NewPipeline creates a new processing pipeline
func NewPipeline(processors ...Processor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs all processors in sequence. On failure it returns the text
// produced by the last successful processor together with the error.
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	result := text

	for i, proc := range p.processors {
		next, err := proc(ctx, result)
		if err != nil {
			return result, fmt.Errorf("processor %d: %w", i, err)
		}
		result = next
	}

	return result, nil
}

// AddProcessor adds a processor to the pipeline
func (p *Pipeline) AddProcessor(proc Processor) {
	p.processors = append(p.processors, proc)
}

// Len returns the number of processors
func (p *Pipeline) Len() int {
	return len(p.processors)
}
