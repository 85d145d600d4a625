package btcvault

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Issuer enables the bearer-token perimeter when non-empty.
	Issuer string
	// SweepInterval overrides the proposal sweep cadence; zero uses
	// the default.
	SweepInterval int64
}

// Server owns the vault repository and serializes mutations per vault.
type Server struct {
	db    *badger.DB
	cfg   Config
	locks *lockTable
}

func NewServer(db *badger.DB, cfg Config) *Server {
	return &Server{
		db:    db,
		cfg:   cfg,
		locks: newLockTable(),
	}
}

// Run drives the background loops until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		return s.LoopSweepProposals(ctx)
	})

	return g.Wait()
}

// lockTable hands out one mutex per vault id so concurrent withdrawal
// and governance requests against the same vault serialize. Cross
// vault operations share nothing.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[string]*sync.Mutex{}}
}

func (t *lockTable) lock(vaultID string) func() {
	t.mu.Lock()
	l, ok := t.locks[vaultID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[vaultID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateVaultInput carries vault creation parameters. Members without
// a public key get a demo secp256k1 key pair generated for them.
type CreateVaultInput struct {
	Members        []Member
	InitialBalance int64
	Policy         PolicyConfig
	CurrentHeight  int64
}

func (s *Server) CreateVault(ctx context.Context, in CreateVaultInput) (*Vault, error) {
	members := make([]Member, len(in.Members))
	copy(members, in.Members)

	for i := range members {
		if members[i].PublicKey != "" {
			continue
		}

		priv, pub, err := GenerateKeyPair()
		if err != nil {
			return nil, err
		}

		members[i].PrivateKey = priv
		members[i].PublicKey = pub
		members[i].JoinHeight = in.CurrentHeight
	}

	vault, err := NewVault(members, in.InitialBalance, in.Policy, in.CurrentHeight)
	if err != nil {
		return nil, err
	}

	vault.ObservedHeight = in.CurrentHeight

	unlock := s.locks.lock(vault.ID)
	defer unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if _, err := findVault(txn, vault.ID); err == nil {
		return nil, validationErrorf("vault %s already exists", vault.ID)
	} else if !errors.Is(err, ErrVaultNotFound) {
		return nil, err
	}

	if err := saveVault(txn, vault); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	slog.Info("vault created",
		"vault", vault.ID,
		"members", len(vault.Members),
		"balance", vault.Balance,
	)

	return vault, nil
}

func (s *Server) GetVault(ctx context.Context, vaultID string) (*Vault, error) {
	return FindVault(s.db, vaultID)
}

func (s *Server) Withdraw(ctx context.Context, vaultID string, req WithdrawalRequest) (*WithdrawalResult, error) {
	unlock := s.locks.lock(vaultID)
	defer unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	vault, err := findVault(txn, vaultID)
	if err != nil {
		return nil, err
	}

	proof := GenerateProof(vault, req)

	res, err := vault.Withdraw(req)
	if err != nil {
		return nil, err
	}

	res.Proof = &proof
	vault.ObservedHeight = max(vault.ObservedHeight, req.CurrentHeight)

	if err := saveVault(txn, vault); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	slog.Info("withdrawal executed",
		"vault", vaultID,
		"amount", res.WithdrawalAmount,
		"penalty", res.Penalty,
		"tx", res.TransactionID,
	)

	return res, nil
}

// CreateProposalInput carries proposal creation parameters.
type CreateProposalInput struct {
	Proposer      string
	Type          ProposalType
	Title         string
	Description   string
	NewPolicy     *PolicyConfig
	CurrentHeight int64
}

func (s *Server) CreateProposal(ctx context.Context, vaultID string, in CreateProposalInput) (*Proposal, error) {
	unlock := s.locks.lock(vaultID)
	defer unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	vault, err := findVault(txn, vaultID)
	if err != nil {
		return nil, err
	}

	proposal, err := NewProposal(vault, in.Proposer, in.Type, in.Title, in.Description, in.NewPolicy, in.CurrentHeight)
	if err != nil {
		return nil, err
	}

	vault.ObservedHeight = max(vault.ObservedHeight, in.CurrentHeight)

	if err := saveProposal(txn, proposal); err != nil {
		return nil, err
	}

	if err := saveVault(txn, vault); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	slog.Info("proposal created",
		"vault", vaultID,
		"proposal", proposal.ID,
		"type", proposal.Type,
		"deadline", proposal.DeadlineHeight,
	)

	return proposal, nil
}

// Vote records a member's vote and settles the proposal if the tally
// resolved it. A passed policy-change proposal installs its policy and
// recomputes the vault commitment inside the same transaction.
func (s *Server) Vote(ctx context.Context, vaultID string, proposalID uuid.UUID, voter string, voteFor bool, currentHeight int64) error {
	unlock := s.locks.lock(vaultID)
	defer unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	vault, err := findVault(txn, vaultID)
	if err != nil {
		return err
	}

	proposal, err := findProposal(txn, vaultID, proposalID)
	if err != nil {
		return err
	}

	if err := proposal.CastVote(vault.Registry(), voter, voteFor, currentHeight); err != nil {
		return err
	}

	res, err := resolve(vault, proposal, currentHeight)
	if err != nil {
		return err
	}

	vault.ObservedHeight = max(vault.ObservedHeight, currentHeight)

	if err := saveProposal(txn, proposal); err != nil {
		return err
	}

	if err := saveVault(txn, vault); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return err
	}

	if res.Status != ProposalActive {
		slog.Info("proposal settled",
			"vault", vaultID,
			"proposal", proposalID,
			"status", res.Status,
			"for", res.VotesForPercentage,
			"against", res.VotesAgainstPercentage,
		)
	}

	return nil
}

// ProposalView is a proposal with its status recomputed as of the
// query height.
type ProposalView struct {
	*Proposal
	Tally TallyResult `json:"tally"`
}

// ListProposals returns every proposal of the vault with its tally as
// of currentHeight. Status here is a derived view; persistence of
// settled statuses is left to votes and the sweeper.
func (s *Server) ListProposals(ctx context.Context, vaultID string, currentHeight int64) ([]ProposalView, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	vault, err := findVault(txn, vaultID)
	if err != nil {
		return nil, err
	}

	proposals, err := listProposals(txn, vaultID)
	if err != nil {
		return nil, err
	}

	views := make([]ProposalView, 0, len(proposals))
	for _, p := range proposals {
		res := p.Tally(vault.Registry(), currentHeight)
		view := ProposalView{Proposal: p, Tally: res}
		view.Proposal.Status = res.Status
		views = append(views, view)
	}

	return views, nil
}
