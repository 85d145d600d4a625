package btcvault

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is a vault participant. Share is an integer percentage of
// ownership and doubles as governance voting weight. PrivateKey is
// demo key material only; a production deployment must never store it
// next to public vault state.
type Member struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
	Share      int    `json:"share"`
	JoinHeight int64  `json:"join_height"`
}

// PolicyType selects a policy preset at vault creation.
type PolicyType uint8

const (
	PolicyCustom PolicyType = iota
	PolicyConservative
	PolicyPermissive
)

// PolicyConfig is the programmable withdrawal rule attached to a vault.
// It is set at creation and replaced only by a passed governance
// proposal.
type PolicyConfig struct {
	BaseQuorum           int             `json:"base_quorum"`
	LargeAmountThreshold int64           `json:"large_amount_threshold"`
	LargeAmountQuorum    int             `json:"large_amount_quorum"`
	EmergencyPenaltyRate decimal.Decimal `json:"emergency_penalty_rate"`

	// MaxWithdrawal caps a single withdrawal; zero means unlimited.
	MaxWithdrawal int64 `json:"max_withdrawal,omitempty"`
	// CooldownBlocks is the minimum height gap since vault creation or
	// the last withdrawal; zero disables the lock.
	CooldownBlocks int64 `json:"cooldown_blocks,omitempty"`
}

// WithdrawalRecord is one entry of a vault's append-only history.
type WithdrawalRecord struct {
	Height        int64    `json:"height"`
	Amount        int64    `json:"amount"`
	Signers       []string `json:"signers"`
	Penalty       int64    `json:"penalty"`
	TransactionID string   `json:"tx_id"`
}

// Vault aggregates balance, membership, the active withdrawal policy
// and the withdrawal history. Balance is satoshi denominated.
type Vault struct {
	ID             string             `json:"vault_id"`
	Balance        int64              `json:"balance"`
	Members        []Member           `json:"members"`
	Policy         PolicyConfig       `json:"policy"`
	CommitmentHash string             `json:"commitment_hash"`
	CreatedHeight  int64              `json:"created_height"`
	History        []WithdrawalRecord `json:"withdrawal_history"`

	// ObservedHeight is the highest caller-supplied height seen by any
	// operation on this vault. The proposal sweeper settles expired
	// proposals against it; it never feeds the commitment hash.
	ObservedHeight int64 `json:"observed_height"`
}

// WithdrawalRequest is a proposed withdrawal as supplied by the caller.
// CurrentHeight comes from the caller; the core has no clock of its
// own.
type WithdrawalRequest struct {
	Amount        int64    `json:"amount"`
	Signers       []string `json:"signers"`
	IsEmergency   bool     `json:"is_emergency"`
	CurrentHeight int64    `json:"current_height"`
}

// WithdrawalResult reports an authorized withdrawal. Penalty stays in
// the vault, so RemainingBalance = balance - amount + penalty.
type WithdrawalResult struct {
	WithdrawalAmount int64  `json:"withdrawal_amount"`
	Penalty          int64  `json:"penalty"`
	RemainingBalance int64  `json:"remaining_balance"`
	TransactionID    string `json:"transaction_id"`

	// Proof attests the decision against the vault commitment; see
	// ComplianceProof for what it does and does not claim.
	Proof *ComplianceProof `json:"proof,omitempty"`
}

// ProposalType is the closed set of governance actions.
type ProposalType uint8

const (
	ProposalPolicyChange ProposalType = iota + 1
	ProposalMemberChange
	ProposalParameterChange
)

func (t ProposalType) String() string {
	switch t {
	case ProposalPolicyChange:
		return "policy_change"
	case ProposalMemberChange:
		return "member_change"
	case ProposalParameterChange:
		return "parameter_change"
	default:
		return "unknown"
	}
}

// ParseProposalType maps wire names onto the closed enum. Unknown
// names fail here, at the boundary, never inside the engine.
func ParseProposalType(s string) (ProposalType, error) {
	switch s {
	case "policy_change":
		return ProposalPolicyChange, nil
	case "member_change":
		return ProposalMemberChange, nil
	case "parameter_change":
		return ProposalParameterChange, nil
	default:
		return 0, validationErrorf("unknown proposal type %q", s)
	}
}

func (t ProposalType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ProposalType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	typ, err := ParseProposalType(s)
	if err != nil {
		return err
	}

	*t = typ
	return nil
}

// ParsePolicyType maps preset names onto the closed enum.
func ParsePolicyType(s string) (PolicyType, error) {
	switch s {
	case "", "custom":
		return PolicyCustom, nil
	case "conservative":
		return PolicyConservative, nil
	case "permissive":
		return PolicyPermissive, nil
	default:
		return 0, validationErrorf("unknown policy type %q", s)
	}
}

// ProposalStatus is derived from votes and height at query time and
// persisted once settled.
type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a vault-scoped governance item. Votes maps voter public
// key to for/against; a repeat vote overwrites the previous one.
type Proposal struct {
	ID                 uuid.UUID       `json:"proposal_id"`
	VaultID            string          `json:"vault_id"`
	Proposer           string          `json:"proposer"`
	Type               ProposalType    `json:"proposal_type"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Status             ProposalStatus  `json:"status"`
	Votes              map[string]bool `json:"votes"`
	CreatedHeight      int64           `json:"created_height"`
	DeadlineHeight     int64           `json:"voting_deadline_height"`
	RequiredPercentage int             `json:"required_percentage"`

	// NewPolicy carries the replacement policy for policy-change
	// proposals; it is installed into the vault when the proposal
	// passes.
	NewPolicy *PolicyConfig `json:"new_policy,omitempty"`
}

// TallyResult is the weighted vote outcome of a proposal as of a given
// height. Percentages are sums of member shares out of 100; members
// who never voted count toward neither side.
type TallyResult struct {
	VotesForPercentage     int            `json:"votes_for_percentage"`
	VotesAgainstPercentage int            `json:"votes_against_percentage"`
	Status                 ProposalStatus `json:"status"`
}
