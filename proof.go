package btcvault

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// ComplianceProof binds a withdrawal request to the vault commitment
// it was authorized against. It is an attestation stub standing in for
// an external proof system: the digest is a plain hash over public
// inputs, claims nothing cryptographically, and exists so callers can
// carry an opaque "rule compliance" token across the boundary.
type ComplianceProof struct {
	VaultCommitment string `json:"vault_commitment"`
	Digest          string `json:"digest"`
}

// GenerateProof produces the attestation for a request against the
// vault's current commitment. Deterministic by construction.
func GenerateProof(v *Vault, req WithdrawalRequest) ComplianceProof {
	signers := make([]string, len(req.Signers))
	copy(signers, req.Signers)
	sort.Strings(signers)

	h := sha256.New()
	h.Write([]byte("VAULT_PROOF_V1"))
	h.Write([]byte(v.CommitmentHash))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(req.Amount))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(req.CurrentHeight))
	h.Write(buf[:])

	if req.IsEmergency {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	for _, s := range signers {
		h.Write([]byte(s))
	}

	return ComplianceProof{
		VaultCommitment: v.CommitmentHash,
		Digest:          hex.EncodeToString(h.Sum(nil)),
	}
}

// Verify checks the proof against a vault commitment. A stale proof
// (generated before a governance policy change) fails here because the
// commitment moved.
func (p ComplianceProof) Verify(vaultCommitment string) bool {
	return p.VaultCommitment == vaultCommitment
}
