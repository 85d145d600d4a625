package btcvault

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	g "github.com/pandodao/generic"
)

var (
	vaultPrefix    = []byte("v:")
	proposalPrefix = []byte("p:")
)

func vaultKey(vaultID string) []byte {
	return append(vaultPrefix, vaultID...)
}

func proposalScope(vaultID string) []byte {
	return append(proposalPrefix, vaultID...)
}

func saveVault(txn *badger.Txn, vault *Vault) error {
	e := badger.NewEntry(vaultKey(vault.ID), g.Must(json.Marshal(vault)))
	return txn.SetEntry(e)
}

func findVault(txn *badger.Txn, vaultID string) (*Vault, error) {
	item, err := txn.Get(vaultKey(vaultID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrVaultNotFound
		}

		return nil, err
	}

	var vault Vault
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &vault)
	}); err != nil {
		return nil, err
	}

	return &vault, nil
}

func saveProposal(txn *badger.Txn, proposal *Proposal) error {
	pk := buildIndexKey(proposalScope(proposal.VaultID), proposal.ID)
	e := badger.NewEntry(pk, g.Must(json.Marshal(proposal)))
	return txn.SetEntry(e)
}

func findProposal(txn *badger.Txn, vaultID string, proposalID uuid.UUID) (*Proposal, error) {
	item, err := txn.Get(buildIndexKey(proposalScope(vaultID), proposalID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrProposalNotFound
		}

		return nil, err
	}

	var p Proposal
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	}); err != nil {
		return nil, err
	}

	return &p, nil
}

func listProposals(txn *badger.Txn, vaultID string) ([]*Proposal, error) {
	prefix := proposalScope(vaultID)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 10
	it := txn.NewIterator(opts)
	defer it.Close()

	var proposals []*Proposal
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()

		var p Proposal
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		}); err != nil {
			return nil, err
		}

		proposals = append(proposals, &p)
	}

	return proposals, nil
}

// FindVault loads a vault outside a caller-managed transaction.
func FindVault(db *badger.DB, vaultID string) (*Vault, error) {
	txn := db.NewTransaction(false)
	defer txn.Discard()

	return findVault(txn, vaultID)
}

// SaveVault persists a vault in its own transaction.
func SaveVault(db *badger.DB, vault *Vault) error {
	txn := db.NewTransaction(true)
	defer txn.Discard()

	if err := saveVault(txn, vault); err != nil {
		return err
	}

	return txn.Commit()
}

// ListProposals loads every proposal of a vault.
func ListProposals(db *badger.DB, vaultID string) ([]*Proposal, error) {
	txn := db.NewTransaction(false)
	defer txn.Discard()

	return listProposals(txn, vaultID)
}
