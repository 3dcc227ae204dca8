package deployer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/compose-network/evm-bridge/internal/ignition"
	"github.com/compose-network/evm-bridge/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	journalFileName   = "journal.json"
	addressesFileName = "deployed_addresses.json"
)

type (
	// JournalEntry records one confirmed future.
	JournalEntry struct {
		FutureID     string              `json:"futureId"`
		Kind         ignition.FutureKind `json:"kind"`
		ContractName string              `json:"contractName"`
		Method       string              `json:"method,omitempty"`
		// Address is the deployed contract, or the called contract for calls.
		Address         common.Address `json:"address"`
		TxHash          common.Hash    `json:"txHash"`
		BlockNumber     uint64         `json:"blockNumber"`
		ConstructorArgs hexutil.Bytes  `json:"constructorArgs,omitempty"`
		CallData        hexutil.Bytes  `json:"callData,omitempty"`
		ConfirmedAt     time.Time      `json:"confirmedAt"`
	}

	// Journal is the execution history of one chain.
	Journal struct {
		ChainID uint64         `json:"chainId"`
		Network string         `json:"network"`
		Entries []JournalEntry `json:"entries"`
	}

	// Store persists journals below a deployments directory, one
	// chain-<id> directory per chain.
	Store struct {
		reader filesystem.Reader
		writer filesystem.Writer
		dir    string
	}
)

func NewStore(reader filesystem.Reader, writer filesystem.Writer, dir string) *Store {
	return &Store{reader: reader, writer: writer, dir: dir}
}

// ChainDir returns the directory holding the journal of chainID.
func (s *Store) ChainDir(chainID uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("chain-%d", chainID))
}

// Load returns the journal of chainID, or an empty one when nothing ran yet.
func (s *Store) Load(chainID uint64) (*Journal, error) {
	journal := &Journal{ChainID: chainID}

	err := s.reader.ReadJSON(filepath.Join(s.ChainDir(chainID), journalFileName), journal)
	if errors.Is(err, fs.ErrNotExist) {
		return &Journal{ChainID: chainID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load journal of chain %d: %w", chainID, err)
	}
	if journal.ChainID != chainID {
		return nil, fmt.Errorf("journal in %s belongs to chain %d", s.ChainDir(chainID), journal.ChainID)
	}

	return journal, nil
}

// Save writes the journal and the derived deployed_addresses.json.
func (s *Store) Save(journal *Journal) error {
	dir := s.ChainDir(journal.ChainID)

	if err := s.writer.WriteJSON(filepath.Join(dir, journalFileName), journal); err != nil {
		return fmt.Errorf("failed to write %s: %w", journalFileName, err)
	}
	if err := s.writer.WriteJSON(filepath.Join(dir, addressesFileName), journal.DeployedAddresses()); err != nil {
		return fmt.Errorf("failed to write %s: %w", addressesFileName, err)
	}

	return nil
}

// Reset removes every record of chainID.
func (s *Store) Reset(chainID uint64) error {
	if err := os.RemoveAll(s.ChainDir(chainID)); err != nil {
		return fmt.Errorf("failed to reset journal of chain %d: %w", chainID, err)
	}

	return nil
}

// Lookup returns the entry recorded for futureID.
func (j *Journal) Lookup(futureID string) (JournalEntry, bool) {
	for _, entry := range j.Entries {
		if entry.FutureID == futureID {
			return entry, true
		}
	}

	return JournalEntry{}, false
}

func (j *Journal) Record(entry JournalEntry) {
	j.Entries = append(j.Entries, entry)
}

// DeployedAddresses maps the id of every deployed contract future to its address.
func (j *Journal) DeployedAddresses() map[string]common.Address {
	addresses := make(map[string]common.Address)
	for _, entry := range j.Entries {
		if entry.Kind == ignition.KindContractDeployment {
			addresses[entry.FutureID] = entry.Address
		}
	}

	return addresses
}

// Deployments returns the contract deployment entries in execution order.
func (j *Journal) Deployments() []JournalEntry {
	var deployments []JournalEntry
	for _, entry := range j.Entries {
		if entry.Kind == ignition.KindContractDeployment {
			deployments = append(deployments, entry)
		}
	}

	return deployments
}
