package btcvault

import (
	"errors"
	"testing"
)

func TestNewVaultDeterministicID(t *testing.T) {
	a, err := NewVault(testMembers(), 100_000_000, testPolicy(), 100)
	if err != nil {
		t.Fatal(err)
	}

	// Same membership in a different order maps to the same vault.
	shuffled := []Member{
		{PublicKey: "carol", Share: 15},
		{PublicKey: "alice", Share: 60},
		{PublicKey: "bob", Share: 25},
	}

	b, err := NewVault(shuffled, 0, testPolicy(), 100)
	if err != nil {
		t.Fatal(err)
	}

	if a.ID != b.ID {
		t.Fatalf("vault id not deterministic: %s vs %s", a.ID, b.ID)
	}

	if a.CommitmentHash != b.CommitmentHash {
		t.Fatal("commitment depends on member order")
	}
}

func TestNewVaultRejectsBadInput(t *testing.T) {
	if _, err := NewVault(testMembers(), -1, testPolicy(), 100); err == nil {
		t.Fatal("negative balance accepted")
	}

	bad := testPolicy()
	bad.BaseQuorum = 0
	if _, err := NewVault(testMembers(), 0, bad, 100); err == nil {
		t.Fatal("invalid policy accepted")
	}

	var verr *ValidationError
	_, err := NewVault([]Member{{PublicKey: "alice", Share: 100}}, 0, testPolicy(), 100)
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestCommitmentTracksPolicyOnly(t *testing.T) {
	v := testVault(t)
	before := v.CommitmentHash

	// Ordinary withdrawals leave the commitment untouched.
	if _, err := v.Withdraw(WithdrawalRequest{
		Amount:        10_000_000,
		Signers:       []string{"alice", "bob"},
		CurrentHeight: 150,
	}); err != nil {
		t.Fatal(err)
	}

	if v.CommitmentHash != before {
		t.Fatal("withdrawal moved the commitment hash")
	}

	next := PermissivePolicy()
	if err := v.InstallPolicy(next); err != nil {
		t.Fatal(err)
	}

	if v.CommitmentHash == before {
		t.Fatal("policy change did not move the commitment hash")
	}
}

func TestTransactionIDDeterministic(t *testing.T) {
	a := transactionID("vault", 150, 10_000_000, []string{"alice", "bob"})
	b := transactionID("vault", 150, 10_000_000, []string{"bob", "alice", "bob"})

	if a != b {
		t.Fatal("tx id depends on signer order or duplicates")
	}

	if a == transactionID("vault", 151, 10_000_000, []string{"alice", "bob"}) {
		t.Fatal("tx id ignores height")
	}
}

func TestWithdrawalHistoryAppendOnly(t *testing.T) {
	v := testVault(t)

	for i, amount := range []int64{1_000_000, 2_000_000} {
		res, err := v.Withdraw(WithdrawalRequest{
			Amount:        amount,
			Signers:       []string{"alice", "bob"},
			CurrentHeight: 150 + int64(i),
		})
		if err != nil {
			t.Fatal(err)
		}

		rec := v.History[len(v.History)-1]
		if rec.Amount != amount || rec.TransactionID != res.TransactionID {
			t.Fatalf("history record mismatch: %+v", rec)
		}
	}

	if len(v.History) != 2 {
		t.Fatalf("want 2 records, got %d", len(v.History))
	}
}

func TestProofBindsCommitment(t *testing.T) {
	v := testVault(t)

	req := WithdrawalRequest{
		Amount:        10_000_000,
		Signers:       []string{"alice", "bob"},
		CurrentHeight: 150,
	}

	proof := GenerateProof(v, req)
	if !proof.Verify(v.CommitmentHash) {
		t.Fatal("fresh proof does not verify")
	}

	again := GenerateProof(v, req)
	if proof.Digest != again.Digest {
		t.Fatal("proof digest not deterministic")
	}

	if err := v.InstallPolicy(PermissivePolicy()); err != nil {
		t.Fatal(err)
	}

	if proof.Verify(v.CommitmentHash) {
		t.Fatal("stale proof verified after policy change")
	}
}

func TestGenerateKeyPair(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	if len(priv) != 64 {
		t.Fatalf("private key hex length %d", len(priv))
	}

	// Compressed secp256k1 public key: 33 bytes.
	if len(pub) != 66 {
		t.Fatalf("public key hex length %d", len(pub))
	}
}
