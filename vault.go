package btcvault

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zyedidia/generic/mapset"
)

const vaultIDTag = "MULTIPARTY_VAULT_V1"

// NewVault validates members and policy and assembles a fresh vault.
// The vault id is a deterministic digest of the member set, so the
// same membership always maps to the same vault.
func NewVault(members []Member, initialBalance int64, policy PolicyConfig, createdHeight int64) (*Vault, error) {
	reg, err := NewRegistry(members)
	if err != nil {
		return nil, err
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if initialBalance < 0 {
		return nil, validationErrorf("negative initial balance")
	}

	v := &Vault{
		ID:            vaultID(reg.Members()),
		Balance:       initialBalance,
		Members:       reg.Members(),
		Policy:        policy,
		CreatedHeight: createdHeight,
	}

	v.CommitmentHash = v.computeCommitment()
	return v, nil
}

// Registry wraps the member list without re-validating; the share-sum
// invariant was enforced at creation and membership never changes.
func (v *Vault) Registry() *Registry {
	return &Registry{members: v.Members}
}

func vaultID(members []Member) string {
	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, m.PublicKey)
	}

	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(vaultIDTag))
	for _, k := range keys {
		h.Write([]byte(k))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// computeCommitment digests the vault configuration: identity,
// membership with shares, and the active policy parameters. Balance
// and history are excluded so the hash moves only when governance
// changes the configuration.
func (v *Vault) computeCommitment() string {
	members := make([]Member, len(v.Members))
	copy(members, v.Members)
	sort.Slice(members, func(i, j int) bool {
		return members[i].PublicKey < members[j].PublicKey
	})

	h := sha256.New()
	h.Write([]byte(v.ID))

	var buf [8]byte
	for _, m := range members {
		h.Write([]byte(m.PublicKey))
		binary.LittleEndian.PutUint64(buf[:], uint64(m.Share))
		h.Write(buf[:])
	}

	p := v.Policy
	for _, n := range []int64{
		int64(p.BaseQuorum),
		p.LargeAmountThreshold,
		int64(p.LargeAmountQuorum),
		p.MaxWithdrawal,
		p.CooldownBlocks,
	} {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}

	h.Write([]byte(p.EmergencyPenaltyRate.String()))

	return hex.EncodeToString(h.Sum(nil))
}

// transactionID synthesizes a deterministic identifier for an
// authorized withdrawal. It stands in for a real Bitcoin transaction
// hash and must stay a pure function for testability.
func transactionID(vaultID string, height, amount int64, signers []string) string {
	set := mapset.New[string]()
	unique := make([]string, 0, len(signers))
	for _, s := range signers {
		if !set.Has(s) {
			set.Put(s)
			unique = append(unique, s)
		}
	}

	sort.Strings(unique)

	h := sha256.New()
	h.Write([]byte("VAULT_TX_V1"))
	h.Write([]byte(vaultID))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(amount))
	h.Write(buf[:])

	for _, s := range unique {
		h.Write([]byte(s))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// lastWithdrawalHeight is the reference height for the cooldown check.
func (v *Vault) lastWithdrawalHeight() int64 {
	if n := len(v.History); n > 0 {
		return v.History[n-1].Height
	}

	return v.CreatedHeight
}

// Withdraw authorizes and applies a withdrawal in one step. Balance
// deduction and history append happen together or not at all; on any
// decision error the vault is untouched.
func (v *Vault) Withdraw(req WithdrawalRequest) (*WithdrawalResult, error) {
	penalty, err := v.Policy.Authorize(v.Registry(), v.Balance, v.lastWithdrawalHeight(), req)
	if err != nil {
		return nil, err
	}

	txID := transactionID(v.ID, req.CurrentHeight, req.Amount, req.Signers)

	// Penalty is retained by the vault, not burned.
	v.Balance = v.Balance - req.Amount + penalty
	v.History = append(v.History, WithdrawalRecord{
		Height:        req.CurrentHeight,
		Amount:        req.Amount,
		Signers:       req.Signers,
		Penalty:       penalty,
		TransactionID: txID,
	})

	return &WithdrawalResult{
		WithdrawalAmount: req.Amount,
		Penalty:          penalty,
		RemainingBalance: v.Balance,
		TransactionID:    txID,
	}, nil
}

// InstallPolicy replaces the active policy after a passed governance
// proposal and rebinds the commitment hash to the new configuration.
func (v *Vault) InstallPolicy(policy PolicyConfig) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	v.Policy = policy
	v.CommitmentHash = v.computeCommitment()
	return nil
}
