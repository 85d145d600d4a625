package btcvault

import "github.com/zyedidia/generic/mapset"

// Registry is the member set of one vault. Membership is immutable
// after creation, so the share-sum invariant is checked once here and
// never re-validated.
type Registry struct {
	members []Member
}

// NewRegistry validates and wraps a member list. Shares must sum to
// exactly 100 and at least two members are required.
func NewRegistry(members []Member) (*Registry, error) {
	if len(members) < 2 {
		return nil, validationErrorf("need at least 2 members, got %d", len(members))
	}

	seen := mapset.New[string]()
	total := 0

	for _, m := range members {
		if m.PublicKey == "" {
			return nil, validationErrorf("member public key is empty")
		}

		if seen.Has(m.PublicKey) {
			return nil, validationErrorf("duplicate member %s", m.PublicKey)
		}

		seen.Put(m.PublicKey)

		if m.Share < 1 || m.Share > 100 {
			return nil, validationErrorf("member %s share %d out of range", m.PublicKey, m.Share)
		}

		total += m.Share
	}

	if total != 100 {
		return nil, validationErrorf("member shares must sum to 100, got %d", total)
	}

	return &Registry{members: members}, nil
}

// Members returns the member list in input order.
func (r *Registry) Members() []Member {
	return r.members
}

// Lookup finds a member by public key.
func (r *Registry) Lookup(publicKey string) (Member, bool) {
	for _, m := range r.members {
		if m.PublicKey == publicKey {
			return m, true
		}
	}

	return Member{}, false
}

// IsMember reports whether the public key belongs to the vault.
func (r *Registry) IsMember(publicKey string) bool {
	_, ok := r.Lookup(publicKey)
	return ok
}

// TotalShareOf sums the shares of the given signer keys. Duplicate
// keys count once and unknown keys are ignored, so a padded signer
// list can never inflate the result past the true share sum.
func (r *Registry) TotalShareOf(signers []string) int {
	seen := mapset.New[string]()
	total := 0

	for _, key := range signers {
		if seen.Has(key) {
			continue
		}

		seen.Put(key)

		if m, ok := r.Lookup(key); ok {
			total += m.Share
		}
	}

	return total
}
