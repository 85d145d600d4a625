package btcvault

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestVaultRoundTrip(t *testing.T) {
	db := testDB(t)
	v := testVault(t)

	if err := SaveVault(db, v); err != nil {
		t.Fatal(err)
	}

	got, err := FindVault(db, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != v.ID || got.Balance != v.Balance || got.CommitmentHash != v.CommitmentHash {
		t.Fatalf("vault mismatch: %+v", got)
	}

	if !reflect.DeepEqual(got.Members, v.Members) {
		t.Fatalf("members mismatch: %+v", got.Members)
	}

	if !got.Policy.EmergencyPenaltyRate.Equal(v.Policy.EmergencyPenaltyRate) {
		t.Fatalf("penalty rate mismatch: %s", got.Policy.EmergencyPenaltyRate)
	}
}

func TestFindVaultNotFound(t *testing.T) {
	db := testDB(t)

	if _, err := FindVault(db, "missing"); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("want ErrVaultNotFound, got %v", err)
	}
}

func TestProposalRoundTrip(t *testing.T) {
	db := testDB(t)
	v := testVault(t)

	next := PermissivePolicy()
	p := testProposal(t, v, ProposalPolicyChange, &next)

	txn := db.NewTransaction(true)
	if err := saveProposal(txn, p); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	txn = db.NewTransaction(false)
	defer txn.Discard()

	got, err := findProposal(txn, v.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != p.ID || got.Type != p.Type || got.RequiredPercentage != p.RequiredPercentage {
		t.Fatalf("proposal mismatch: %+v", got)
	}

	if got.NewPolicy == nil || got.NewPolicy.BaseQuorum != next.BaseQuorum {
		t.Fatalf("policy payload lost: %+v", got.NewPolicy)
	}
}

func TestListProposalsScopedToVault(t *testing.T) {
	db := testDB(t)
	v := testVault(t)

	other, err := NewVault([]Member{
		{PublicKey: "dave", Share: 50},
		{PublicKey: "erin", Share: 50},
	}, 0, testPolicy(), 100)
	if err != nil {
		t.Fatal(err)
	}

	txn := db.NewTransaction(true)
	for _, vault := range []*Vault{v, other} {
		p, err := NewProposal(vault, vault.Members[0].PublicKey, ProposalParameterChange, "t", "d", nil, 200)
		if err != nil {
			t.Fatal(err)
		}

		if err := saveProposal(txn, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	proposals, err := ListProposals(db, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(proposals) != 1 {
		t.Fatalf("want 1 proposal for vault, got %d", len(proposals))
	}

	if proposals[0].VaultID != v.ID {
		t.Fatalf("foreign proposal leaked: %s", proposals[0].VaultID)
	}
}
