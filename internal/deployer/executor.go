package deployer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/compose-network/evm-bridge/internal/contracts"
	"github.com/compose-network/evm-bridge/internal/ignition"
	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const defaultConfirmationTimeout = 2 * time.Minute

type (
	// Backend is the chain access the executor needs. *ethclient.Client satisfies it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
	}

	journalStore interface {
		Load(chainID uint64) (*Journal, error)
		Save(journal *Journal) error
		Reset(chainID uint64) error
	}

	Settings struct {
		Network string
		// ExpectedChainID, when non zero, must match the chain id reported by the backend.
		ExpectedChainID     uint64
		GasLimit            uint64
		ConfirmationTimeout time.Duration
		Reset               bool
	}

	// Executor runs a plan against one chain, one transaction at a time.
	Executor struct {
		backend  Backend
		store    journalStore
		key      *ecdsa.PrivateKey
		settings Settings
		logger   *slog.Logger
	}

	Result struct {
		ChainID  uint64
		Deployer common.Address
		// Addresses maps every deployed future id to its contract address.
		Addresses map[string]common.Address
		// Contracts maps module result names to contract addresses.
		Contracts map[string]common.Address
		Executed  int
		Skipped   int
		Journal   *Journal
	}
)

func NewExecutor(backend Backend, store journalStore, key *ecdsa.PrivateKey, settings Settings) *Executor {
	if settings.ConfirmationTimeout <= 0 {
		settings.ConfirmationTimeout = defaultConfirmationTimeout
	}

	return &Executor{
		backend:  backend,
		store:    store,
		key:      key,
		settings: settings,
		logger:   logger.Named("deployer"),
	}
}

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return key, nil
}

// Execute runs every future of plan that the journal has not confirmed yet.
// artifacts must hold every contract the plan deploys.
func (e *Executor) Execute(ctx context.Context, plan *ignition.Plan, artifacts map[string]contracts.CompiledContract) (*Result, error) {
	if err := checkArtifacts(plan, artifacts); err != nil {
		return nil, err
	}

	e.logger.Info("fetching chain ID")
	chainIDBig, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	chainID := chainIDBig.Uint64()
	if e.settings.ExpectedChainID != 0 && e.settings.ExpectedChainID != chainID {
		return nil, fmt.Errorf("network %s expects chain %d but the RPC reports %d", e.settings.Network, e.settings.ExpectedChainID, chainID)
	}
	e.logger.With("chain_id", chainID).Info("chain ID was fetched")

	if e.settings.Reset {
		e.logger.With("chain_id", chainID).Warn("resetting deployment journal")
		if err := e.store.Reset(chainID); err != nil {
			return nil, err
		}
	}

	journal, err := e.store.Load(chainID)
	if err != nil {
		return nil, err
	}
	journal.Network = e.settings.Network

	if err := reconcile(plan, journal, artifacts); err != nil {
		return nil, err
	}

	result := &Result{
		ChainID:   chainID,
		Deployer:  crypto.PubkeyToAddress(e.key.PublicKey),
		Addresses: journal.DeployedAddresses(),
		Contracts: make(map[string]common.Address),
		Journal:   journal,
	}

	for _, future := range plan.Futures() {
		if entry, done := journal.Lookup(future.ID()); done {
			e.logger.With("future", future.ID(), "tx_hash", entry.TxHash.Hex()).Info("future already executed, skipping")
			result.Skipped++
			continue
		}

		var entry JournalEntry
		switch f := future.(type) {
		case *ignition.ContractFuture:
			entry, err = e.deploy(ctx, chainIDBig, f, artifacts[f.ContractName], result.Addresses)
		case *ignition.CallFuture:
			entry, err = e.call(ctx, chainIDBig, f, artifacts[f.Contract.ContractName], result.Addresses)
		default:
			err = fmt.Errorf("unsupported future type %T", future)
		}
		if err != nil {
			return nil, fmt.Errorf("future %s failed: %w", future.ID(), err)
		}

		journal.Record(entry)
		if err := e.store.Save(journal); err != nil {
			return nil, err
		}
		if entry.Kind == ignition.KindContractDeployment {
			result.Addresses[entry.FutureID] = entry.Address
		}
		result.Executed++
	}

	for name, future := range plan.Results() {
		result.Contracts[name] = result.Addresses[future.ID()]
	}

	e.logger.With("executed", result.Executed, "skipped", result.Skipped).Info("plan executed successfully")

	return result, nil
}

func (e *Executor) deploy(ctx context.Context, chainID *big.Int, future *ignition.ContractFuture, contract contracts.CompiledContract, addresses map[string]common.Address) (JournalEntry, error) {
	converted, encodedArgs, err := encodeConstructor(future, contract, addresses)
	if err != nil {
		return JournalEntry{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.ConfirmationTimeout)
	defer cancel()

	auth, err := e.transactor(ctx, chainID)
	if err != nil {
		return JournalEntry{}, err
	}

	address, tx, _, err := bind.DeployContract(auth, contract.ABI, contract.Bytecode, e.backend, converted...)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	e.logger.
		With("contract", future.ContractName, "address", address.Hex(), "tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := e.waitMined(ctx, tx)
	if err != nil {
		return JournalEntry{}, err
	}

	e.logger.With("contract", future.ContractName, "address", address.Hex(), "block", receipt.BlockNumber).Info("deployed")

	return JournalEntry{
		FutureID:        future.ID(),
		Kind:            ignition.KindContractDeployment,
		ContractName:    future.ContractName,
		Address:         address,
		TxHash:          tx.Hash(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		ConstructorArgs: encodedArgs,
		ConfirmedAt:     time.Now().UTC(),
	}, nil
}

func (e *Executor) call(ctx context.Context, chainID *big.Int, future *ignition.CallFuture, contract contracts.CompiledContract, addresses map[string]common.Address) (JournalEntry, error) {
	address, ok := addresses[future.Contract.ID()]
	if !ok {
		return JournalEntry{}, fmt.Errorf("contract %s is not deployed", future.Contract.ID())
	}

	converted, calldata, err := encodeCall(future, contract, addresses)
	if err != nil {
		return JournalEntry{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.ConfirmationTimeout)
	defer cancel()

	auth, err := e.transactor(ctx, chainID)
	if err != nil {
		return JournalEntry{}, err
	}

	bound := bind.NewBoundContract(address, contract.ABI, e.backend, e.backend, e.backend)
	tx, err := bound.Transact(auth, future.Method, converted...)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("failed to send %s: %w", future.Method, err)
	}

	e.logger.
		With("contract", future.Contract.ContractName, "method", future.Method, "tx_hash", tx.Hash().Hex()).
		Info("call transaction sent")

	receipt, err := e.waitMined(ctx, tx)
	if err != nil {
		return JournalEntry{}, err
	}

	return JournalEntry{
		FutureID:     future.ID(),
		Kind:         ignition.KindContractCall,
		ContractName: future.Contract.ContractName,
		Method:       future.Method,
		Address:      address,
		TxHash:       tx.Hash(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
		CallData:     calldata,
		ConfirmedAt:  time.Now().UTC(),
	}, nil
}

func (e *Executor) transactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(e.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = e.settings.GasLimit

	return auth, nil
}

func (e *Executor) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s failed with status %d", tx.Hash().Hex(), receipt.Status)
	}

	return receipt, nil
}

// encodeConstructor resolves and packs the constructor arguments of future.
func encodeConstructor(future *ignition.ContractFuture, contract contracts.CompiledContract, addresses map[string]common.Address) ([]any, []byte, error) {
	args, err := resolveArgs(future.Args, addresses)
	if err != nil {
		return nil, nil, err
	}
	converted, err := contracts.ConvertArgs(contract.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid constructor arguments: %w", err)
	}
	encoded, err := contract.ABI.Pack("", converted...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	return converted, encoded, nil
}

// encodeCall resolves the arguments of future and packs them into calldata.
func encodeCall(future *ignition.CallFuture, contract contracts.CompiledContract, addresses map[string]common.Address) ([]any, []byte, error) {
	args, err := resolveArgs(future.Args, addresses)
	if err != nil {
		return nil, nil, err
	}
	converted, err := contracts.ConvertArgs(contract.ABI.Methods[future.Method].Inputs, args)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid arguments for %s: %w", future.Method, err)
	}
	calldata, err := contract.ABI.Pack(future.Method, converted...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s call: %w", future.Method, err)
	}

	return converted, calldata, nil
}

// reconcile fails when a future the journal already holds would now run
// with a different contract or different arguments.
func reconcile(plan *ignition.Plan, journal *Journal, artifacts map[string]contracts.CompiledContract) error {
	addresses := journal.DeployedAddresses()

	var errs []error
	for _, future := range plan.Futures() {
		entry, done := journal.Lookup(future.ID())
		if !done {
			continue
		}

		var err error
		switch f := future.(type) {
		case *ignition.ContractFuture:
			err = reconcileDeployment(entry, f, artifacts[f.ContractName], addresses)
		case *ignition.CallFuture:
			err = reconcileCall(entry, f, artifacts[f.Contract.ContractName], addresses)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", future.ID(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("journal of chain %d does not match the plan, rerun with --reset to redeploy: %w", journal.ChainID, errors.Join(errs...))
	}

	return nil
}

func reconcileDeployment(entry JournalEntry, future *ignition.ContractFuture, contract contracts.CompiledContract, addresses map[string]common.Address) error {
	if entry.Kind != ignition.KindContractDeployment || entry.ContractName != future.ContractName {
		return fmt.Errorf("recorded as %s of %s, planned as deployment of %s", entry.Kind, entry.ContractName, future.ContractName)
	}

	_, encoded, err := encodeConstructor(future, contract, addresses)
	if err != nil {
		return err
	}
	if !bytes.Equal(entry.ConstructorArgs, encoded) {
		return fmt.Errorf("constructor arguments changed from %s to %s", entry.ConstructorArgs, hexutil.Bytes(encoded))
	}

	return nil
}

func reconcileCall(entry JournalEntry, future *ignition.CallFuture, contract contracts.CompiledContract, addresses map[string]common.Address) error {
	if entry.Kind != ignition.KindContractCall || entry.ContractName != future.Contract.ContractName || entry.Method != future.Method {
		return fmt.Errorf("recorded as %s of %s.%s, planned as call of %s.%s", entry.Kind, entry.ContractName, entry.Method, future.Contract.ContractName, future.Method)
	}
	if recorded, ok := addresses[future.Contract.ID()]; !ok || recorded != entry.Address {
		return fmt.Errorf("called contract %s is no longer recorded at %s", future.Contract.ID(), entry.Address.Hex())
	}

	_, calldata, err := encodeCall(future, contract, addresses)
	if err != nil {
		return err
	}
	if !bytes.Equal(entry.CallData, calldata) {
		return fmt.Errorf("call data changed from %s to %s", entry.CallData, hexutil.Bytes(calldata))
	}

	return nil
}

// resolveArgs replaces future references with the address they deployed to.
func resolveArgs(args []any, addresses map[string]common.Address) ([]any, error) {
	resolved := make([]any, len(args))
	for i, arg := range args {
		ref, ok := arg.(*ignition.ContractFuture)
		if !ok {
			resolved[i] = arg
			continue
		}

		address, ok := addresses[ref.ID()]
		if !ok {
			return nil, fmt.Errorf("argument %d references %s which is not deployed", i, ref.ID())
		}
		resolved[i] = address
	}

	return resolved, nil
}

// checkArtifacts fails before any transaction when the plan references a
// contract or method the artifacts do not provide.
func checkArtifacts(plan *ignition.Plan, artifacts map[string]contracts.CompiledContract) error {
	var errs []error

	for _, future := range plan.Futures() {
		switch f := future.(type) {
		case *ignition.ContractFuture:
			contract, ok := artifacts[f.ContractName]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: no artifact for contract %s", f.ID(), f.ContractName))
				continue
			}
			if want := len(contract.ABI.Constructor.Inputs); want != len(f.Args) {
				errs = append(errs, fmt.Errorf("%s: constructor takes %d arguments, got %d", f.ID(), want, len(f.Args)))
			}
		case *ignition.CallFuture:
			contract, ok := artifacts[f.Contract.ContractName]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: no artifact for contract %s", f.ID(), f.Contract.ContractName))
				continue
			}
			method, ok := contract.ABI.Methods[f.Method]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: contract %s has no method %s", f.ID(), f.Contract.ContractName, f.Method))
				continue
			}
			if want := len(method.Inputs); want != len(f.Args) {
				errs = append(errs, fmt.Errorf("%s: %s takes %d arguments, got %d", f.ID(), f.Method, want, len(f.Args)))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("plan does not match compiled contracts: %w", errors.Join(errs...))
	}

	return nil
}
