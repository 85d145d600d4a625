package btcvault

import "github.com/shopspring/decimal"

// Policy presets. Custom policies supply their own PolicyConfig and
// are validated the same way at vault creation.
func ConservativePolicy() PolicyConfig {
	return PolicyConfig{
		BaseQuorum:           67,
		LargeAmountThreshold: 10_000_000, // 0.1 BTC
		LargeAmountQuorum:    100,
		EmergencyPenaltyRate: decimal.RequireFromString("0.1"),
		MaxWithdrawal:        100_000_000, // 1 BTC
		CooldownBlocks:       144,         // ~1 day
	}
}

func PermissivePolicy() PolicyConfig {
	return PolicyConfig{
		BaseQuorum:           51,
		LargeAmountThreshold: 50_000_000, // 0.5 BTC
		LargeAmountQuorum:    75,
		EmergencyPenaltyRate: decimal.RequireFromString("0.05"),
		MaxWithdrawal:        200_000_000, // 2 BTC
		CooldownBlocks:       72,          // ~12 hours
	}
}

// PolicyForType maps the closed preset enum to a concrete config.
// PolicyCustom returns the caller-supplied config unchanged.
func PolicyForType(typ PolicyType, custom PolicyConfig) (PolicyConfig, error) {
	switch typ {
	case PolicyConservative:
		return ConservativePolicy(), nil
	case PolicyPermissive:
		return PermissivePolicy(), nil
	case PolicyCustom:
		return custom, nil
	default:
		return PolicyConfig{}, validationErrorf("unknown policy type %d", typ)
	}
}

// Validate checks a policy configuration at construction time, never
// at withdrawal time.
func (p PolicyConfig) Validate() error {
	if p.BaseQuorum < 1 || p.BaseQuorum > 100 {
		return validationErrorf("base quorum %d out of range", p.BaseQuorum)
	}

	if p.LargeAmountQuorum < p.BaseQuorum || p.LargeAmountQuorum > 100 {
		return validationErrorf("large amount quorum %d out of range", p.LargeAmountQuorum)
	}

	if p.LargeAmountThreshold < 0 {
		return validationErrorf("large amount threshold is negative")
	}

	if p.EmergencyPenaltyRate.IsNegative() || p.EmergencyPenaltyRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return validationErrorf("emergency penalty rate %s out of range", p.EmergencyPenaltyRate)
	}

	if p.MaxWithdrawal < 0 || p.CooldownBlocks < 0 {
		return validationErrorf("negative withdrawal limit")
	}

	return nil
}

// requiredQuorum picks the quorum for the requested amount.
func (p PolicyConfig) requiredQuorum(amount int64) int {
	if amount >= p.LargeAmountThreshold {
		return p.LargeAmountQuorum
	}

	return p.BaseQuorum
}

// penalty is floor(amount * rate) in satoshis.
func (p PolicyConfig) penalty(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(p.EmergencyPenaltyRate).Floor().IntPart()
}

// Authorize runs the withdrawal decision against the vault's balance,
// registry and policy. It is a pure function of its inputs: the checks
// run in a fixed order and the caller applies the resulting mutation.
//
// lastHeight is the height of the most recent withdrawal, or the vault
// creation height if there is none.
func (p PolicyConfig) Authorize(reg *Registry, balance, lastHeight int64, req WithdrawalRequest) (penalty int64, err error) {
	if req.Amount > balance {
		return 0, &InsufficientBalanceError{Amount: req.Amount, Balance: balance}
	}

	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	if p.MaxWithdrawal > 0 && req.Amount > p.MaxWithdrawal {
		return 0, ErrInvalidAmount
	}

	if p.CooldownBlocks > 0 {
		if elapsed := req.CurrentHeight - lastHeight; elapsed < p.CooldownBlocks {
			return 0, &WithdrawalLockedError{RemainingBlocks: p.CooldownBlocks - elapsed}
		}
	}

	signerShare := reg.TotalShareOf(req.Signers)
	required := p.requiredQuorum(req.Amount)

	if signerShare >= required {
		return 0, nil
	}

	// Emergency path: normal quorum met but not the elevated one.
	// The penalty discourages bypassing full quorum without
	// destroying value; it stays in the vault.
	if req.IsEmergency && signerShare >= p.BaseQuorum {
		return p.penalty(req.Amount), nil
	}

	return 0, &InsufficientQuorumError{SignerShare: signerShare, Required: required}
}
