package memory

import (
	"context"
	"errors"
	"testing"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:      "trade1",
		RunID:        "run1",
		Symbol:       "BTCUSDT",
		ClosedAtMs:   1000,
		NetPnL:       0.05,
		OutcomeClass: domain.OutcomeClassWin,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.NetPnL != 0.05 {
		t.Errorf("NetPnL mismatch: got %f, want %f", got.NetPnL, 0.05)
	}

	got.NetPnL = 99
	again, _ := store.GetByID(ctx, "trade1")
	if again.NetPnL != 0.05 {
		t.Errorf("store returned shared pointer")
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "trade1", RunID: "run1"}
	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_InsertBulkAtomic(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	batch := []*domain.TradeRecord{
		{TradeID: "a", RunID: "run1"},
		{TradeID: "b", RunID: "run1"},
		{TradeID: "a", RunID: "run1"},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "b"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial batch was stored")
	}

	if err := store.InsertBulk(ctx, []*domain.TradeRecord{{TradeID: ""}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTradeRecordStore_GetByRunID(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t3", RunID: "run1", ClosedAtMs: 3000},
		{TradeID: "t1", RunID: "run1", ClosedAtMs: 1000},
		{TradeID: "t2", RunID: "run2", ClosedAtMs: 2000},
		{TradeID: "t0", RunID: "run1", ClosedAtMs: 1000},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}

	want := []string{"t0", "t1", "t3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d trades, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].TradeID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].TradeID, id)
		}
	}
}
