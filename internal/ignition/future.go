package ignition

import (
	"fmt"
	"strings"
)

type FutureKind string

const (
	KindContractDeployment FutureKind = "ContractDeployment"
	KindContractCall       FutureKind = "ContractCall"
)

type (
	// Future is a single step of a deployment plan.
	Future interface {
		ID() string
		Module() string
		Kind() FutureKind
		Dependencies() []Future
	}

	// ContractFuture deploys ContractName with Args. Args may reference other
	// ContractFutures, which resolve to their deployed address.
	ContractFuture struct {
		id           string
		module       string
		ContractName string
		Args         []any
		deps         []Future
	}

	// CallFuture sends a state mutating call to a deployed contract.
	CallFuture struct {
		id       string
		module   string
		Contract *ContractFuture
		Method   string
		Args     []any
		deps     []Future
	}
)

func (f *ContractFuture) ID() string             { return f.id }
func (f *ContractFuture) Module() string         { return f.module }
func (f *ContractFuture) Kind() FutureKind       { return KindContractDeployment }
func (f *ContractFuture) Dependencies() []Future { return f.deps }

func (f *CallFuture) ID() string             { return f.id }
func (f *CallFuture) Module() string         { return f.module }
func (f *CallFuture) Kind() FutureKind       { return KindContractCall }
func (f *CallFuture) Dependencies() []Future { return f.deps }

// argDependencies collects every future referenced by args, first occurrence wins.
func argDependencies(args []any) []Future {
	var deps []Future
	seen := make(map[string]struct{})
	for _, arg := range args {
		ref, ok := arg.(*ContractFuture)
		if !ok {
			continue
		}
		if _, dup := seen[ref.id]; dup {
			continue
		}
		seen[ref.id] = struct{}{}
		deps = append(deps, ref)
	}

	return deps
}

// FormatArgs renders arguments for display, future references as their id.
func FormatArgs(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if ref, ok := arg.(*ContractFuture); ok {
			parts = append(parts, ref.id)
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", arg))
	}

	return strings.Join(parts, ", ")
}
