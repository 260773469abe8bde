package archive

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func testHand(id string, playedAt time.Time) Hand {
	return Hand{
		ID:            id,
		PlayedAt:      playedAt,
		HeroSeat:      "BTN",
		VillainSeat:   "BB",
		Winner:        "BB",
		Pot:           240,
		StreetReached: "river",
		Board:         "Qs Jh 2h 7d 2c",
		HeroCards:     "Ah Kd",
		VillainCards:  "Qc Qd",
		Actions: []Action{
			{Seq: 0, Street: "preflop", Seat: "UTG", Action: "fold"},
			{Seq: 1, Street: "preflop", Seat: "BTN", Action: "raise", Amount: 25},
			{Seq: 2, Street: "preflop", Seat: "BB", Action: "call", Amount: 15},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	played := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	require.NoError(t, store.InsertHands(ctx, []Hand{testHand("hand-1", played)}))

	hands, err := store.Hands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hands, 1)

	got := hands[0]
	require.Equal(t, "hand-1", got.ID)
	require.Equal(t, played.UnixMilli(), got.PlayedAt.UnixMilli())
	require.Equal(t, "BTN", got.HeroSeat)
	require.Equal(t, "BB", got.Winner)
	require.Equal(t, 240, got.Pot)
	require.Equal(t, "Qs Jh 2h 7d 2c", got.Board)

	require.Len(t, got.Actions, 3)
	require.Equal(t, "fold", got.Actions[0].Action)
	require.Equal(t, "raise", got.Actions[1].Action)
	require.Equal(t, 25, got.Actions[1].Amount)
	require.Equal(t, 2, got.Actions[2].Seq)
}

func TestStoreOrdersMostRecentFirst(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertHands(ctx, []Hand{
		testHand("older", base),
		testHand("newer", base.Add(time.Minute)),
	}))

	hands, err := store.Hands(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hands, 1)
	require.Equal(t, "newer", hands[0].ID)
}

func TestStoreRejectsDuplicateHand(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	h := testHand("dup", time.Now())
	require.NoError(t, store.InsertHands(ctx, []Hand{h}))
	require.Error(t, store.InsertHands(ctx, []Hand{h}))
}

func TestRecorderFlushWritesBuffered(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := NewRecorder(store, RecorderConfig{Logger: log.New(io.Discard)})
	t.Cleanup(rec.Stop)

	rec.Record(testHand("a", time.Now()))
	rec.Record(testHand("b", time.Now().Add(time.Second)))
	rec.Flush()

	hands, err := store.Hands(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hands, 2)
}

func TestRecorderTickerFlush(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := quartz.NewMock(t)
	trap := mock.Trap().NewTicker("archive", "flush")
	defer trap.Close()

	rec := NewRecorder(store, RecorderConfig{
		Logger:        log.New(io.Discard),
		Clock:         mock,
		FlushInterval: time.Second,
	})
	t.Cleanup(rec.Stop)

	rec.Record(testHand("ticked", time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	trap.MustWait(ctx).MustRelease(ctx)
	mock.Advance(time.Second).MustWait(ctx)

	require.Eventually(t, func() bool {
		hands, err := store.Hands(context.Background(), 10)
		return err == nil && len(hands) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRecorderStopDrains(t *testing.T) {
	t.Parallel()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := NewRecorder(store, RecorderConfig{Logger: log.New(io.Discard)})
	rec.Record(testHand("x", time.Now()))
	rec.Record(testHand("y", time.Now().Add(time.Second)))
	rec.Stop()
	rec.Stop() // idempotent

	hands, err := store.Hands(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, hands, 2)
}
