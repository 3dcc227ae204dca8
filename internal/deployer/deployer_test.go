package deployer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/compose-network/evm-bridge/configs"
	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/ignition"
	jsonfs "github.com/compose-network/evm-bridge/internal/infra/filesystem/json"
	"github.com/compose-network/evm-bridge/internal/modules"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// returns a runtime consisting of a single STOP
	stopInitCode = "0x600060005360016000f3"
	// reverts during construction
	revertInitCode = "0x60006000fd"

	relayer   = "0x1111111111111111111111111111111111111111"
	collector = "0x2222222222222222222222222222222222222222"
)

const testArtifacts = `{
  "CustomNFT": {
    "abi": [
      {"type": "constructor", "inputs": [], "stateMutability": "nonpayable"},
      {"type": "function", "name": "mintCollectionNFT", "stateMutability": "nonpayable", "outputs": [],
       "inputs": [{"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}]}
    ],
    "bytecode": "` + stopInitCode + `",
    "sourceName": "contracts/CustomNFT.sol"
  },
  "MessageSender": {
    "abi": [{"type": "constructor", "stateMutability": "nonpayable", "inputs": [{"name": "relayer", "type": "address"}]}],
    "bytecode": "` + stopInitCode + `",
    "sourceName": "contracts/MessageSender.sol"
  },
  "CrossChainBridge": {
    "abi": [{"type": "constructor", "stateMutability": "nonpayable", "inputs": [
      {"name": "nft", "type": "address"},
      {"name": "sender", "type": "address"},
      {"name": "target", "type": "address"},
      {"name": "wormholeChainId", "type": "uint16"}
    ]}],
    "bytecode": "` + stopInitCode + `",
    "sourceName": "contracts/CrossChainBridge.sol"
  },
  "MessageReceiver": {
    "abi": [{"type": "constructor", "stateMutability": "nonpayable", "inputs": [{"name": "relayer", "type": "address"}]}],
    "bytecode": "` + stopInitCode + `",
    "sourceName": "contracts/MessageReceiver.sol"
  }
}`

type testChain struct {
	backend *simulated.Backend
	key     *ecdsa.PrivateKey
	from    common.Address
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	backend := simulated.NewBackend(types.GenesisAlloc{from: {Balance: balance}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = backend.Close()
	})

	return &testChain{backend: backend, key: key, from: from}
}

func sourceChainPlan(t *testing.T) *ignition.Plan {
	t.Helper()

	return sourceChainPlanWith(t, collector, nil)
}

func sourceChainPlanWith(t *testing.T, collector string, params ignition.Parameters) *ignition.Plan {
	t.Helper()

	env := configs.MapEnvironment{
		configs.EnvSourceChainRelayer: relayer,
		configs.EnvCollectorAddress:   collector,
	}
	module, err := modules.SourceChain(env, params)
	require.NoError(t, err)

	plan, err := ignition.NewPlan(module)
	require.NoError(t, err)

	return plan
}

func testContracts(t *testing.T) map[string]contracts.CompiledContract {
	t.Helper()

	artifacts, err := contracts.ParseContracts([]byte(testArtifacts))
	require.NoError(t, err)

	return artifacts
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(jsonfs.NewReader(), jsonfs.NewWriter(), t.TempDir())
}

func TestExecuteSourceChain(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)
	plan := sourceChainPlan(t)
	artifacts := testContracts(t)
	settings := Settings{Network: "devnet", ConfirmationTimeout: 30 * time.Second}

	result, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), plan, artifacts)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Executed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, chain.from, result.Deployer)

	assert.Equal(t, crypto.CreateAddress(chain.from, 0), result.Contracts["customNft"])
	assert.Equal(t, crypto.CreateAddress(chain.from, 1), result.Contracts["messageSender"])
	assert.Equal(t, crypto.CreateAddress(chain.from, 2), result.Contracts["crossChainBridge"])

	journal, err := store.Load(result.ChainID)
	require.NoError(t, err)
	require.Len(t, journal.Entries, 4)
	assert.Equal(t, "devnet", journal.Network)
	assert.Len(t, journal.Deployments(), 3)

	call, ok := journal.Lookup("SourceChain#CustomNFT.mintCollectionNFT")
	require.True(t, ok)
	assert.Equal(t, ignition.KindContractCall, call.Kind)
	assert.Equal(t, result.Contracts["customNft"], call.Address)

	bridge, ok := journal.Lookup("SourceChain#CrossChainBridge")
	require.True(t, ok)
	bridgeABI := artifacts[contracts.ContractNameCrossChainBridge].ABI
	unpacked, err := bridgeABI.Constructor.Inputs.Unpack(bridge.ConstructorArgs)
	require.NoError(t, err)
	require.Len(t, unpacked, 4)
	assert.Equal(t, result.Contracts["customNft"], unpacked[0])
	assert.Equal(t, result.Contracts["messageSender"], unpacked[1])
	assert.Equal(t, common.HexToAddress(modules.DefaultBridgeTarget), unpacked[2])
	assert.Equal(t, uint16(modules.DefaultWormholeChainID), unpacked[3])

	code, err := chain.backend.Client().CodeAt(t.Context(), result.Contracts["crossChainBridge"], nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, code)
}

func TestExecuteResumesFromJournal(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)
	plan := sourceChainPlan(t)
	artifacts := testContracts(t)
	settings := Settings{ConfirmationTimeout: 30 * time.Second}

	first, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), plan, artifacts)
	require.NoError(t, err)

	second, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), plan, artifacts)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Executed)
	assert.Equal(t, 4, second.Skipped)
	assert.Equal(t, first.Contracts, second.Contracts)

	nonce, err := chain.backend.Client().PendingNonceAt(t.Context(), chain.from)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), nonce)
}

func TestExecuteRejectsChangedArguments(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)
	artifacts := testContracts(t)
	settings := Settings{ConfirmationTimeout: 30 * time.Second}

	_, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), sourceChainPlan(t), artifacts)
	require.NoError(t, err)

	t.Run("collector", func(t *testing.T) {
		plan := sourceChainPlanWith(t, "0x8888888888888888888888888888888888888888", nil)

		result, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), plan, artifacts)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "SourceChain#CustomNFT.mintCollectionNFT: call data changed")
		assert.Contains(t, err.Error(), "--reset")
		assert.NotContains(t, err.Error(), "SourceChain#CrossChainBridge")
	})

	t.Run("bridge target", func(t *testing.T) {
		params := ignition.Parameters{
			modules.SourceChainID: {modules.ParamBridgeTarget: "0x7777777777777777777777777777777777777777"},
		}
		plan := sourceChainPlanWith(t, collector, params)

		_, err := NewExecutor(chain.backend.Client(), store, chain.key, settings).Execute(t.Context(), plan, artifacts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SourceChain#CrossChainBridge: constructor arguments changed")
	})

	nonce, err := chain.backend.Client().PendingNonceAt(t.Context(), chain.from)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), nonce)

	result, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{Reset: true}).
		Execute(t.Context(), sourceChainPlanWith(t, "0x8888888888888888888888888888888888888888", nil), artifacts)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Executed)
}

func TestExecuteReset(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)
	plan := sourceChainPlan(t)
	artifacts := testContracts(t)

	_, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{}).Execute(t.Context(), plan, artifacts)
	require.NoError(t, err)

	result, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{Reset: true}).Execute(t.Context(), plan, artifacts)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Executed)
	assert.Equal(t, crypto.CreateAddress(chain.from, 4), result.Contracts["customNft"])
}

func TestExecuteChainIDMismatch(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)

	_, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{Network: "sepolia", ExpectedChainID: 11155111}).
		Execute(t.Context(), sourceChainPlan(t), testContracts(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects chain 11155111")
}

func TestExecuteRejectsMissingArtifacts(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)

	artifacts := testContracts(t)
	delete(artifacts, contracts.ContractNameMessageSender)
	nft := artifacts[contracts.ContractNameCustomNFT]
	delete(nft.ABI.Methods, contracts.MethodMintCollectionNFT)
	artifacts[contracts.ContractNameCustomNFT] = nft

	_, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{}).Execute(t.Context(), sourceChainPlan(t), artifacts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no artifact for contract MessageSender")
	assert.Contains(t, err.Error(), "has no method mintCollectionNFT")

	nonce, err := chain.backend.Client().PendingNonceAt(t.Context(), chain.from)
	require.NoError(t, err)
	assert.Zero(t, nonce)
}

func TestExecuteStopsOnFailedDeployment(t *testing.T) {
	chain := newTestChain(t)
	store := newTestStore(t)

	artifacts := testContracts(t)
	sender := artifacts[contracts.ContractNameMessageSender]
	sender.Bytecode = common.FromHex(revertInitCode)
	artifacts[contracts.ContractNameMessageSender] = sender

	result, err := NewExecutor(chain.backend.Client(), store, chain.key, Settings{GasLimit: 1_000_000}).
		Execute(t.Context(), sourceChainPlan(t), artifacts)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "SourceChain#MessageSender")

	chainID, err := chain.backend.Client().ChainID(t.Context())
	require.NoError(t, err)
	journal, err := store.Load(chainID.Uint64())
	require.NoError(t, err)
	require.Len(t, journal.Entries, 1)
	assert.Equal(t, "SourceChain#CustomNFT", journal.Entries[0].FutureID)
}

func TestResolveArgs(t *testing.T) {
	module, err := ignition.BuildModule("M", nil, func(m *ignition.ModuleBuilder) (map[string]*ignition.ContractFuture, error) {
		a := m.Contract("A")
		m.Contract("B", a, "literal")
		return nil, nil
	})
	require.NoError(t, err)
	ref := module.Futures[0].(*ignition.ContractFuture)

	addr := common.HexToAddress(relayer)
	resolved, err := resolveArgs([]any{ref, "literal", 7}, map[string]common.Address{"M#A": addr})
	require.NoError(t, err)
	assert.Equal(t, []any{addr, "literal", 7}, resolved)

	_, err = resolveArgs([]any{ref}, map[string]common.Address{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M#A which is not deployed")
}

func TestStoreSaveLoadReset(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(jsonfs.NewReader(), jsonfs.NewWriter(), dir)

	journal, err := store.Load(31337)
	require.NoError(t, err)
	assert.Empty(t, journal.Entries)

	addr := common.HexToAddress(relayer)
	journal.Record(JournalEntry{FutureID: "M#A", Kind: ignition.KindContractDeployment, ContractName: "A", Address: addr})
	journal.Record(JournalEntry{FutureID: "M#A.run", Kind: ignition.KindContractCall, ContractName: "A", Method: "run", Address: addr})
	require.NoError(t, store.Save(journal))

	assert.FileExists(t, filepath.Join(dir, "chain-31337", "journal.json"))

	var addresses map[string]common.Address
	require.NoError(t, jsonfs.NewReader().ReadJSON(filepath.Join(dir, "chain-31337", "deployed_addresses.json"), &addresses))
	assert.Equal(t, map[string]common.Address{"M#A": addr}, addresses)

	loaded, err := store.Load(31337)
	require.NoError(t, err)
	assert.Equal(t, journal.Entries[1].Method, loaded.Entries[1].Method)

	_, err = store.Load(1)
	require.NoError(t, err)

	require.NoError(t, store.Reset(31337))
	assert.NoDirExists(t, store.ChainDir(31337))
}

func TestStoreLoadRejectsForeignJournal(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(jsonfs.NewReader(), jsonfs.NewWriter(), dir)

	require.NoError(t, jsonfs.NewWriter().WriteJSON(filepath.Join(store.ChainDir(5), journalFileName), Journal{ChainID: 6}))

	_, err := store.Load(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to chain 6")
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), crypto.PubkeyToAddress(key.PublicKey))

	_, err = ParsePrivateKey("not-a-key")
	require.Error(t, err)
}
