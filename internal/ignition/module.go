package ignition

import (
	"errors"
	"fmt"
)

type (
	// Module is the immutable result of a builder run.
	Module struct {
		ID      string
		Futures []Future
		Results map[string]*ContractFuture
	}

	// ModuleBuilder collects futures while a module definition runs.
	ModuleBuilder struct {
		id      string
		futures []Future
		ids     map[string]struct{}
		params  map[string]any
		errs    []error
	}

	BuildFunc func(m *ModuleBuilder) (map[string]*ContractFuture, error)
)

// BuildModule runs fn once against a fresh builder. params holds the
// parameter overrides for this module and may be nil.
func BuildModule(id string, params map[string]any, fn BuildFunc) (*Module, error) {
	if id == "" {
		return nil, errors.New("module id is required")
	}

	m := &ModuleBuilder{
		id:     id,
		ids:    make(map[string]struct{}),
		params: params,
	}

	results, err := fn(m)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", id, err)
	}
	if len(m.errs) > 0 {
		return nil, fmt.Errorf("module %s: %w", id, errors.Join(m.errs...))
	}

	for name, result := range results {
		if result == nil || result.module != id {
			return nil, fmt.Errorf("module %s: result %q is not a contract of this module", id, name)
		}
	}

	return &Module{
		ID:      id,
		Futures: m.futures,
		Results: results,
	}, nil
}

// Contract declares a deployment of contractName.
func (m *ModuleBuilder) Contract(contractName string, args ...any) *ContractFuture {
	return m.ContractWithID(contractName, contractName, args...)
}

// ContractWithID declares a deployment under an explicit future id, for
// deploying the same contract more than once.
func (m *ModuleBuilder) ContractWithID(id, contractName string, args ...any) *ContractFuture {
	future := &ContractFuture{
		id:           fmt.Sprintf("%s#%s", m.id, id),
		module:       m.id,
		ContractName: contractName,
		Args:         args,
		deps:         argDependencies(args),
	}
	m.add(future)

	return future
}

// Call declares a state mutating call on contract once it is deployed.
func (m *ModuleBuilder) Call(contract *ContractFuture, method string, args ...any) *CallFuture {
	if contract == nil {
		m.errs = append(m.errs, fmt.Errorf("call %s: contract is nil", method))
		return nil
	}

	deps := []Future{contract}
	for _, dep := range argDependencies(args) {
		if dep.ID() != contract.ID() {
			deps = append(deps, dep)
		}
	}

	future := &CallFuture{
		id:       fmt.Sprintf("%s.%s", contract.id, method),
		module:   m.id,
		Contract: contract,
		Method:   method,
		Args:     args,
		deps:     deps,
	}
	m.add(future)

	return future
}

// Parameter returns the override for name, or defaultValue when none is set.
func (m *ModuleBuilder) Parameter(name string, defaultValue any) any {
	if value, ok := m.params[name]; ok {
		return value
	}

	return defaultValue
}

func (m *ModuleBuilder) add(future Future) {
	if _, dup := m.ids[future.ID()]; dup {
		m.errs = append(m.errs, fmt.Errorf("duplicate future id %s", future.ID()))
		return
	}
	m.ids[future.ID()] = struct{}{}
	m.futures = append(m.futures, future)
}
