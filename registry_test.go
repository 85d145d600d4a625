package btcvault

import (
	"errors"
	"testing"
)

func testMembers() []Member {
	return []Member{
		{PublicKey: "alice", Share: 60},
		{PublicKey: "bob", Share: 25},
		{PublicKey: "carol", Share: 15},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	cases := []struct {
		name    string
		members []Member
		wantErr bool
	}{
		{
			name:    "valid",
			members: testMembers(),
		},
		{
			name:    "single member",
			members: []Member{{PublicKey: "alice", Share: 100}},
			wantErr: true,
		},
		{
			name: "shares under 100",
			members: []Member{
				{PublicKey: "alice", Share: 60},
				{PublicKey: "bob", Share: 30},
			},
			wantErr: true,
		},
		{
			name: "shares over 100",
			members: []Member{
				{PublicKey: "alice", Share: 60},
				{PublicKey: "bob", Share: 50},
			},
			wantErr: true,
		},
		{
			name: "duplicate member",
			members: []Member{
				{PublicKey: "alice", Share: 50},
				{PublicKey: "alice", Share: 50},
			},
			wantErr: true,
		},
		{
			name: "zero share",
			members: []Member{
				{PublicKey: "alice", Share: 0},
				{PublicKey: "bob", Share: 100},
			},
			wantErr: true,
		},
		{
			name: "empty key",
			members: []Member{
				{PublicKey: "", Share: 50},
				{PublicKey: "bob", Share: 50},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.members)
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("want ValidationError, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(testMembers())
	if err != nil {
		t.Fatal(err)
	}

	m, ok := reg.Lookup("bob")
	if !ok || m.Share != 25 {
		t.Fatalf("lookup bob: ok=%v share=%d", ok, m.Share)
	}

	if _, ok := reg.Lookup("mallory"); ok {
		t.Fatal("mallory should not be a member")
	}
}

func TestTotalShareOf(t *testing.T) {
	reg, err := NewRegistry(testMembers())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		signers []string
		want    int
	}{
		{"two members", []string{"alice", "bob"}, 85},
		{"all members", []string{"alice", "bob", "carol"}, 100},
		{"duplicates count once", []string{"alice", "alice", "alice"}, 60},
		{"unknown keys ignored", []string{"alice", "mallory"}, 60},
		{"empty set", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := reg.TotalShareOf(tc.signers); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestTotalShareMonotonic(t *testing.T) {
	reg, err := NewRegistry(testMembers())
	if err != nil {
		t.Fatal(err)
	}

	// Adding signers can never decrease the total share.
	subsets := [][]string{
		{"carol"},
		{"carol", "bob"},
		{"carol", "bob", "alice"},
	}

	prev := -1
	for _, set := range subsets {
		got := reg.TotalShareOf(set)
		if got < prev {
			t.Fatalf("share decreased: %v -> %d after %d", set, got, prev)
		}
		prev = got
	}
}
