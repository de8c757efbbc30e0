package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"custodian/internal/domain"
)

func TestEvidenceStoreWriteOnce(t *testing.T) {
	store := NewEvidenceStore("test")
	enc := domain.EncryptedEvidence{
		EvidenceID:   "ev-1",
		Ciphertext:   []byte("sealed"),
		SealedDigest: domain.Hash{Alg: "sha256", Value: "abc"},
	}

	receipt, err := store.Put(context.Background(), enc)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if receipt.StorageID == "" || receipt.Location != "test" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	_, err = store.Put(context.Background(), enc)
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEvidenceStoreConcurrentPutSingleWinner(t *testing.T) {
	store := NewEvidenceStore("test")
	enc := domain.EncryptedEvidence{
		EvidenceID: "ev-1",
		Ciphertext: []byte("sealed"),
	}

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Put(context.Background(), enc)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrDuplicateKey):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning put, got %d", wins)
	}
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func TestEvidenceStoreGetCopiesCiphertext(t *testing.T) {
	store := NewEvidenceStore("test")
	if _, err := store.Put(context.Background(), domain.EncryptedEvidence{
		EvidenceID: "ev-1",
		Ciphertext: []byte("sealed"),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Ciphertext[0] = 'X'

	again, err := store.Get(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if string(again.Ciphertext) != "sealed" {
		t.Fatalf("stored ciphertext mutated through a returned copy: %q", again.Ciphertext)
	}

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChainRepositoryAppendAssignsSeq(t *testing.T) {
	repo := NewChainRepository()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first, err := repo.Create(context.Background(), domain.ChainOfCustody{
		EvidenceID:  "ev-1",
		CreatedAt:   now,
		LastUpdated: now,
	}, domain.CustodyEntry{
		EvidenceID: "ev-1",
		Action:     domain.ActionCollection,
		Timestamp:  now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second, err := repo.Append(context.Background(), domain.CustodyEntry{
		EvidenceID: "ev-1",
		Action:     domain.ActionAnalysis,
		Timestamp:  now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("unexpected sequence %d, %d", first.Seq, second.Seq)
	}
	if first.CustodyID == second.CustodyID {
		t.Fatal("custody ids must be unique")
	}

	chain, err := repo.Get(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !chain.LastUpdated.Equal(now.Add(time.Hour)) {
		t.Fatalf("last updated not advanced: %v", chain.LastUpdated)
	}
}

func TestChainRepositoryCreateNeverLeavesEmptyChain(t *testing.T) {
	repo := NewChainRepository()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first, err := repo.Create(context.Background(), domain.ChainOfCustody{
		EvidenceID:  "ev-1",
		CreatedAt:   now,
		LastUpdated: now,
	}, domain.CustodyEntry{
		EvidenceID: "ev-1",
		Action:     domain.ActionCollection,
		Actor:      "officer-1",
		Timestamp:  now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Seq != 1 || first.CustodyID == "" {
		t.Fatalf("first entry not installed: %+v", first)
	}

	chain, err := repo.Get(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(chain.Entries) != 1 {
		t.Fatalf("created chain must carry its first entry, got %d entries", len(chain.Entries))
	}
	if !chain.LastUpdated.Equal(now) {
		t.Fatalf("last updated %v", chain.LastUpdated)
	}

	_, err = repo.Create(context.Background(), domain.ChainOfCustody{EvidenceID: "ev-1"}, domain.CustodyEntry{
		EvidenceID: "ev-1",
		Action:     domain.ActionCollection,
		Timestamp:  now.Add(time.Hour),
	})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	chain, err = repo.Get(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get after duplicate create: %v", err)
	}
	if len(chain.Entries) != 1 || !chain.Entries[0].Timestamp.Equal(now) {
		t.Fatalf("duplicate create disturbed the chain: %+v", chain.Entries)
	}
}

func TestChainRepositoryAppendWithoutChain(t *testing.T) {
	repo := NewChainRepository()
	_, err := repo.Append(context.Background(), domain.CustodyEntry{EvidenceID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccessRepositoryRequiresOpenLog(t *testing.T) {
	repo := NewAccessRepository()

	_, err := repo.AppendRecord(context.Background(), domain.AccessRecord{EvidenceID: "ev-1"})
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied before open, got %v", err)
	}
	if _, err := repo.ListRecords(context.Background(), "ev-1"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied before open, got %v", err)
	}

	if err := repo.OpenLog(context.Background(), "ev-1"); err != nil {
		t.Fatalf("open log: %v", err)
	}
	records, err := repo.ListRecords(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("log should open empty, got %d", len(records))
	}

	rec, err := repo.AppendRecord(context.Background(), domain.AccessRecord{
		EvidenceID: "ev-1",
		Requester:  "admin",
		Action:     domain.AccessView,
	})
	if err != nil {
		t.Fatalf("append record: %v", err)
	}
	if rec.AccessID == "" {
		t.Fatal("record has no access id")
	}
}

func TestAccessRepositoryPolicies(t *testing.T) {
	repo := NewAccessRepository()

	policy, err := repo.GetPolicy(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get missing policy: %v", err)
	}
	if policy != nil {
		t.Fatalf("expected nil policy, got %+v", policy)
	}

	if err := repo.CreatePolicy(context.Background(), domain.AccessPolicy{
		EvidenceID:        "ev-1",
		AllowedRequesters: []string{"admin"},
		Level:             domain.AccessLevelRestricted,
	}); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	err = repo.CreatePolicy(context.Background(), domain.AccessPolicy{EvidenceID: "ev-1"})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	policy, err = repo.GetPolicy(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	policy.AllowedRequesters[0] = "mallory"

	again, err := repo.GetPolicy(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("get policy again: %v", err)
	}
	if again.AllowedRequesters[0] != "admin" {
		t.Fatal("stored policy mutated through a returned copy")
	}
}
