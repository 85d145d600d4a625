package btcvault

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const defaultSweepInterval = time.Minute

// LoopSweepProposals periodically settles proposals whose deadline
// passed relative to the highest height each vault has observed.
// Query-time tallies stay authoritative; the sweep only persists the
// already-decided outcome so listings stop carrying stale "active"
// records.
func (s *Server) LoopSweepProposals(ctx context.Context) error {
	interval := defaultSweepInterval
	if s.cfg.SweepInterval > 0 {
		interval = time.Duration(s.cfg.SweepInterval) * time.Second
	}

	for {
		if err := s.sweepProposals(ctx); err != nil {
			slog.Error("sweep proposals failed", slog.Any("err", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *Server) sweepProposals(ctx context.Context) error {
	vaultIDs, err := s.listVaultIDs()
	if err != nil {
		return err
	}

	for _, id := range vaultIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.sweepVault(id); err != nil {
			slog.Error("sweep vault failed", "vault", id, slog.Any("err", err))
		}
	}

	return nil
}

func (s *Server) listVaultIDs() ([]string, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(vaultPrefix); it.ValidForPrefix(vaultPrefix); it.Next() {
		key := it.Item().Key()
		ids = append(ids, string(key[len(vaultPrefix):]))
	}

	return ids, nil
}

func (s *Server) sweepVault(vaultID string) error {
	unlock := s.locks.lock(vaultID)
	defer unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	vault, err := findVault(txn, vaultID)
	if err != nil {
		return err
	}

	proposals, err := listProposals(txn, vaultID)
	if err != nil {
		return err
	}

	dirty := false
	for _, p := range proposals {
		if p.Status != ProposalActive {
			continue
		}

		res, err := resolve(vault, p, vault.ObservedHeight)
		if err != nil {
			return err
		}

		if res.Status == ProposalActive {
			continue
		}

		if err := saveProposal(txn, p); err != nil {
			return err
		}

		dirty = true

		slog.Info("proposal swept",
			"vault", vaultID,
			"proposal", p.ID,
			"status", p.Status,
		)
	}

	if !dirty {
		return nil
	}

	if err := saveVault(txn, vault); err != nil {
		return err
	}

	return txn.Commit()
}
