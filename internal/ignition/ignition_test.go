package ignition

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func futureIDs(futures []Future) []string {
	ids := make([]string, 0, len(futures))
	for _, future := range futures {
		ids = append(ids, future.ID())
	}
	return ids
}

func TestBuildModule(t *testing.T) {
	module, err := BuildModule("Demo", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
		token := m.Contract("Token")
		vault := m.Contract("Vault", token, "0x01", token)
		m.Call(token, "approve", vault, 10)

		return map[string]*ContractFuture{"token": token, "vault": vault}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Demo#Token", "Demo#Vault", "Demo#Token.approve"}, futureIDs(module.Futures))
	assert.Equal(t, []string{"Demo#Token"}, futureIDs(module.Futures[1].Dependencies()))
	assert.Equal(t, []string{"Demo#Token", "Demo#Vault"}, futureIDs(module.Futures[2].Dependencies()))
	assert.Equal(t, KindContractCall, module.Futures[2].Kind())
	assert.Len(t, module.Results, 2)
}

func TestBuildModuleErrors(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		_, err := BuildModule("Demo", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
			m.Contract("Token")
			m.Contract("Token")
			return nil, nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate future id Demo#Token")
	})

	t.Run("same contract twice with explicit ids", func(t *testing.T) {
		module, err := BuildModule("Demo", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
			m.ContractWithID("TokenA", "Token")
			m.ContractWithID("TokenB", "Token")
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Demo#TokenA", "Demo#TokenB"}, futureIDs(module.Futures))
	})

	t.Run("builder error is wrapped", func(t *testing.T) {
		sentinel := errors.New("boom")
		_, err := BuildModule("Demo", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
			return nil, sentinel
		})
		require.ErrorIs(t, err, sentinel)
	})

	t.Run("foreign result", func(t *testing.T) {
		other, err := BuildModule("Other", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
			return map[string]*ContractFuture{"x": m.Contract("X")}, nil
		})
		require.NoError(t, err)

		_, err = BuildModule("Demo", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
			return map[string]*ContractFuture{"x": other.Results["x"]}, nil
		})
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := BuildModule("", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) { return nil, nil })
		require.Error(t, err)
	})
}

func TestParameters(t *testing.T) {
	params := map[string]any{
		"target":  "0xabc",
		"chainId": float64(7),
		"big":     "1000000000000000000000",
		"bad":     1.5,
	}

	var (
		target, fallback string
		chainID, large    *big.Int
	)
	_, err := BuildModule("Demo", params, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
		target = m.StringParameter("target", "0xdef")
		fallback = m.StringParameter("missing", "0xdef")
		chainID = m.BigIntParameter("chainId", 1)
		large = m.BigIntParameter("big", 1)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", target)
	assert.Equal(t, "0xdef", fallback)
	assert.Equal(t, int64(7), chainID.Int64())
	assert.Equal(t, "1000000000000000000000", large.String())

	_, err = BuildModule("Demo", params, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
		m.BigIntParameter("bad", 1)
		m.StringParameter("chainId", "")
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter bad")
	assert.Contains(t, err.Error(), "parameter chainId must be a string")
}

type staticReader struct {
	data Parameters
	err  error
}

func (r staticReader) ReadJSON(_ string, target any) error {
	if r.err != nil {
		return r.err
	}
	*(target.(*Parameters)) = r.data
	return nil
}

func TestLoadParameters(t *testing.T) {
	params, err := LoadParameters(staticReader{err: errors.New("unused")}, "")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = LoadParameters(staticReader{data: Parameters{"SourceChain": {"wormholeChainId": float64(2)}}}, "params.json")
	require.NoError(t, err)
	assert.Equal(t, float64(2), params.For("SourceChain")["wormholeChainId"])
	assert.Nil(t, params.For("TargetChain"))

	_, err = LoadParameters(staticReader{err: errors.New("no such file")}, "params.json")
	require.Error(t, err)
}

func TestNewPlan(t *testing.T) {
	first, err := BuildModule("First", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
		a := m.Contract("A")
		b := m.Contract("B")
		c := m.Contract("C", a, b)
		m.Call(a, "init", 10)
		return map[string]*ContractFuture{"c": c}, nil
	})
	require.NoError(t, err)

	second, err := BuildModule("Second", nil, func(m *ModuleBuilder) (map[string]*ContractFuture, error) {
		return map[string]*ContractFuture{"d": m.Contract("D")}, nil
	})
	require.NoError(t, err)

	plan, err := NewPlan(first, second)
	require.NoError(t, err)

	require.Len(t, plan.Batches, 2)
	assert.Equal(t, []string{"First#A", "First#B", "Second#D"}, futureIDs(plan.Batches[0]))
	assert.Equal(t, []string{"First#C", "First#A.init"}, futureIDs(plan.Batches[1]))
	assert.Len(t, plan.Futures(), 5)
	assert.Len(t, plan.Results(), 2)

	steps := plan.Steps()
	require.Len(t, steps, 5)
	assert.Equal(t, Step{Batch: 1, ID: "First#C", Kind: KindContractDeployment, Target: "C", Args: "First#A, First#B"}, steps[3])
	assert.Equal(t, Step{Batch: 1, ID: "First#A.init", Kind: KindContractCall, Target: "A.init", Args: "10"}, steps[4])
}

type loopFuture struct {
	id   string
	deps []Future
}

func (f *loopFuture) ID() string             { return f.id }
func (f *loopFuture) Module() string         { return "Loop" }
func (f *loopFuture) Kind() FutureKind       { return KindContractDeployment }
func (f *loopFuture) Dependencies() []Future { return f.deps }

func TestNewPlanErrors(t *testing.T) {
	_, err := NewPlan()
	require.Error(t, err)

	a := &loopFuture{id: "Loop#A"}
	b := &loopFuture{id: "Loop#B", deps: []Future{a}}
	a.deps = []Future{b}

	_, err = NewPlan(&Module{ID: "Loop", Futures: []Future{a, b}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")

	orphan := &loopFuture{id: "Loop#C", deps: []Future{&loopFuture{id: "Elsewhere#X"}}}
	_, err = NewPlan(&Module{ID: "Loop", Futures: []Future{orphan}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of the plan")

	module := &Module{ID: "Loop", Futures: []Future{&loopFuture{id: "Loop#D"}}}
	_, err = NewPlan(module, module)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}
