package events

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLogSequencesAndRetainsBacklog(t *testing.T) {
	log := NewLog(2)
	base := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	log.SetClock(func() time.Time { return base })

	for i := 0; i < 3; i++ {
		log.Emit(PauseChanged{Paused: i%2 == 0, Actor: common.HexToAddress("0x01")})
	}
	entries := log.Entries(0)
	if len(entries) != 2 {
		t.Fatalf("expected capacity-bounded backlog of 2, got %d", len(entries))
	}
	if entries[0].Sequence != 2 || entries[1].Sequence != 3 {
		t.Fatalf("unexpected sequences: %d, %d", entries[0].Sequence, entries[1].Sequence)
	}
	if entries[1].Type != TypeLedgerPaused {
		t.Fatalf("unexpected type %q", entries[1].Type)
	}
	if !entries[0].Time.Equal(base) {
		t.Fatalf("unexpected timestamp %s", entries[0].Time)
	}
	if after := log.Entries(3); len(after) != 0 {
		t.Fatalf("expected no entries after latest sequence, got %d", len(after))
	}
}

func TestLogSubscribeDeliversLiveEntries(t *testing.T) {
	log := NewLog(8)
	log.Emit(Approval{Token: common.HexToAddress("0xaa"), Amount: big.NewInt(5)})

	ch, cancel, backlog := log.Subscribe(0, 4)
	defer cancel()
	if len(backlog) != 1 || backlog[0].Type != TypeApproval {
		t.Fatalf("unexpected backlog: %+v", backlog)
	}

	log.Emit(SwapExecuted{ID: "0xabc", AmountIn: big.NewInt(100)})
	select {
	case entry := <-ch:
		if entry.Type != TypeSwapExecuted {
			t.Fatalf("unexpected live entry type %q", entry.Type)
		}
		if entry.Attributes["amountIn"] != "100" {
			t.Fatalf("unexpected amountIn attribute %q", entry.Attributes["amountIn"])
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live entry")
	}
}

func TestLogDropsSlowSubscriber(t *testing.T) {
	log := NewLog(8)
	ch, cancel, _ := log.Subscribe(0, 1)
	defer cancel()

	log.Emit(PauseChanged{Paused: true})
	log.Emit(PauseChanged{Paused: false})

	if _, ok := <-ch; !ok {
		t.Fatalf("expected first entry to be buffered")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after overflow")
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	a := NewLog(4)
	b := NewLog(4)
	MultiEmitter{a, nil, b}.Emit(OwnershipTransferred{Previous: common.HexToAddress("0x1"), Next: common.HexToAddress("0x2")})
	if len(a.Entries(0)) != 1 || len(b.Entries(0)) != 1 {
		t.Fatalf("expected both logs to receive the event")
	}
}
