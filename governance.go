package btcvault

import "github.com/google/uuid"

// VotingPeriodBlocks is the fixed voting window for every proposal.
const VotingPeriodBlocks = 100

// requiredPercentageFor is the per-type quorum table. Changing the
// withdrawal policy needs a wider majority than a cosmetic parameter
// change.
func requiredPercentageFor(typ ProposalType) (int, error) {
	switch typ {
	case ProposalPolicyChange:
		return 75, nil
	case ProposalMemberChange:
		return 67, nil
	case ProposalParameterChange:
		return 51, nil
	default:
		return 0, validationErrorf("unknown proposal type %d", typ)
	}
}

// NewProposal opens a governance proposal on the vault. Only current
// members may propose. Policy-change proposals must carry the
// replacement policy so it can be installed on passing.
func NewProposal(v *Vault, proposer string, typ ProposalType, title, description string, newPolicy *PolicyConfig, currentHeight int64) (*Proposal, error) {
	if !v.Registry().IsMember(proposer) {
		return nil, ErrNotAMember
	}

	required, err := requiredPercentageFor(typ)
	if err != nil {
		return nil, err
	}

	if title == "" {
		return nil, validationErrorf("proposal title is empty")
	}

	if typ == ProposalPolicyChange {
		if newPolicy == nil {
			return nil, validationErrorf("policy change proposal without policy")
		}

		if err := newPolicy.Validate(); err != nil {
			return nil, err
		}
	}

	return &Proposal{
		ID:                 uuid.New(),
		VaultID:            v.ID,
		Proposer:           proposer,
		Type:               typ,
		Title:              title,
		Description:        description,
		Status:             ProposalActive,
		Votes:              map[string]bool{},
		CreatedHeight:      currentHeight,
		DeadlineHeight:     currentHeight + VotingPeriodBlocks,
		RequiredPercentage: required,
		NewPolicy:          newPolicy,
	}, nil
}

// CastVote records or overwrites a member's vote. Proposals resolved
// or past their deadline reject further votes.
func (p *Proposal) CastVote(reg *Registry, voter string, voteFor bool, currentHeight int64) error {
	if !reg.IsMember(voter) {
		return ErrNotAMember
	}

	if p.Status != ProposalActive || currentHeight > p.DeadlineHeight {
		return ErrProposalClosed
	}

	// Last vote wins; a repeat vote replaces, never accumulates.
	p.Votes[voter] = voteFor
	return nil
}

// Tally computes the weighted outcome as of currentHeight without
// mutating the proposal. Percentages are member shares; non-voters
// count toward neither side.
//
// A proposal passes the moment the "for" share reaches the required
// percentage, before the deadline. It is rejected once the deadline
// passes without reaching it, or earlier when the unvoted share can
// no longer push the "for" total over the line.
func (p *Proposal) Tally(reg *Registry, currentHeight int64) TallyResult {
	var votesFor, votesAgainst int
	for voter, inFavor := range p.Votes {
		m, ok := reg.Lookup(voter)
		if !ok {
			continue
		}

		if inFavor {
			votesFor += m.Share
		} else {
			votesAgainst += m.Share
		}
	}

	res := TallyResult{
		VotesForPercentage:     votesFor,
		VotesAgainstPercentage: votesAgainst,
		Status:                 p.Status,
	}

	if p.Status != ProposalActive {
		return res
	}

	switch {
	case votesFor >= p.RequiredPercentage:
		res.Status = ProposalPassed
	case currentHeight > p.DeadlineHeight:
		res.Status = ProposalRejected
	case votesFor+(100-votesFor-votesAgainst) < p.RequiredPercentage:
		// Mathematically impossible to pass even if every unvoted
		// share comes in for.
		res.Status = ProposalRejected
	}

	return res
}

// resolve settles the proposal status from the current tally. When a
// policy-change proposal flips to passed, the carried policy is
// installed into the vault and the commitment hash recomputed, all
// within the caller's storage transaction.
func resolve(v *Vault, p *Proposal, currentHeight int64) (TallyResult, error) {
	res := p.Tally(v.Registry(), currentHeight)
	if p.Status != ProposalActive || res.Status == ProposalActive {
		return res, nil
	}

	p.Status = res.Status

	if p.Status == ProposalPassed && p.Type == ProposalPolicyChange && p.NewPolicy != nil {
		if err := v.InstallPolicy(*p.NewPolicy); err != nil {
			return res, err
		}
	}

	return res, nil
}
