package ignition

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Plan is a set of modules ordered into batches. Every future of a batch
	// only depends on futures of earlier batches.
	Plan struct {
		Modules []*Module
		Batches [][]Future
	}

	// Step is a display row of a plan.
	Step struct {
		Batch  int
		ID     string
		Kind   FutureKind
		Target string
		Args   string
	}
)

// NewPlan orders the futures of modules. Ties keep declaration order.
func NewPlan(modules ...*Module) (*Plan, error) {
	if len(modules) == 0 {
		return nil, errors.New("plan needs at least one module")
	}

	var (
		ordered  []Future
		index    = make(map[string]int)
		inDegree = make(map[string]int)
		children = make(map[string][]string)
	)

	for _, module := range modules {
		for _, future := range module.Futures {
			if _, dup := index[future.ID()]; dup {
				return nil, fmt.Errorf("future %s is declared twice", future.ID())
			}
			index[future.ID()] = len(ordered)
			ordered = append(ordered, future)
		}
	}

	for _, future := range ordered {
		for _, dep := range future.Dependencies() {
			if _, ok := index[dep.ID()]; !ok {
				return nil, fmt.Errorf("future %s depends on %s which is not part of the plan", future.ID(), dep.ID())
			}
			inDegree[future.ID()]++
			children[dep.ID()] = append(children[dep.ID()], future.ID())
		}
	}

	var batches [][]Future
	done := 0
	ready := make([]bool, len(ordered))
	for i, future := range ordered {
		ready[i] = inDegree[future.ID()] == 0
	}

	for done < len(ordered) {
		var batch []Future
		for i, future := range ordered {
			if ready[i] {
				batch = append(batch, future)
				ready[i] = false
			}
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("dependency cycle among futures: %s", strings.Join(pending(ordered, inDegree), ", "))
		}

		for _, future := range batch {
			inDegree[future.ID()] = -1
			for _, child := range children[future.ID()] {
				inDegree[child]--
				if inDegree[child] == 0 {
					ready[index[child]] = true
				}
			}
		}

		done += len(batch)
		batches = append(batches, batch)
	}

	return &Plan{Modules: modules, Batches: batches}, nil
}

// Futures returns every future in execution order.
func (p *Plan) Futures() []Future {
	var futures []Future
	for _, batch := range p.Batches {
		futures = append(futures, batch...)
	}

	return futures
}

// Results merges the named results of every module of the plan.
func (p *Plan) Results() map[string]*ContractFuture {
	results := make(map[string]*ContractFuture)
	for _, module := range p.Modules {
		for name, future := range module.Results {
			results[name] = future
		}
	}

	return results
}

func (p *Plan) Steps() []Step {
	var steps []Step
	for i, batch := range p.Batches {
		for _, future := range batch {
			step := Step{Batch: i, ID: future.ID(), Kind: future.Kind()}
			switch f := future.(type) {
			case *ContractFuture:
				step.Target = f.ContractName
				step.Args = FormatArgs(f.Args)
			case *CallFuture:
				step.Target = fmt.Sprintf("%s.%s", f.Contract.ContractName, f.Method)
				step.Args = FormatArgs(f.Args)
			}
			steps = append(steps, step)
		}
	}

	return steps
}

func pending(futures []Future, inDegree map[string]int) []string {
	var ids []string
	for _, future := range futures {
		if inDegree[future.ID()] > 0 {
			ids = append(ids, future.ID())
		}
	}

	return ids
}
