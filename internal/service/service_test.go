package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessmatch/internal/archive"
	"chessmatch/internal/board"
	"chessmatch/internal/core"
	"chessmatch/internal/game"
	"chessmatch/internal/rules"
	"chessmatch/internal/store"
)

func newTestService() *Service {
	return New(store.NewMemory(), rules.NewStandard(), nil)
}

func TestCreateGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, board.StartingFEN, rec.FEN)
	assert.Equal(t, core.ColorWhite, rec.SideToMove)
	assert.Equal(t, "alice", rec.WhiteID)
	assert.Empty(t, rec.BlackID)
	assert.Equal(t, core.StatusWaiting, rec.Status)
	assert.Empty(t, rec.Moves)
	assert.EqualValues(t, 0, rec.Version)

	_, err = svc.CreateGame(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestJoinGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)

	// The creator cannot take both seats
	_, err = svc.JoinGame(ctx, rec.ID, "alice")
	assert.ErrorIs(t, err, core.ErrConflict)

	joined, err := svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", joined.BlackID)
	assert.Equal(t, core.StatusActive, joined.Status)
	assert.EqualValues(t, 1, joined.Version)

	// Second join is rejected and leaves the seats untouched
	_, err = svc.JoinGame(ctx, rec.ID, "carol")
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := svc.GetGame(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.BlackID)

	_, err = svc.JoinGame(ctx, "no-such-game", "bob")
	assert.ErrorIs(t, err, core.ErrGameNotFound)

	_, err = svc.JoinGame(ctx, rec.ID, "")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestApplyMoveTurnOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)

	// No moves before black joins
	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "e2e4", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)

	// Black cannot open
	_, err = svc.ApplyMove(ctx, rec.ID, "bob", "e2e4", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	// Spectators cannot move at all
	_, err = svc.ApplyMove(ctx, rec.ID, "carol", "e2e4", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	after, err := svc.ApplyMove(ctx, rec.ID, "alice", "e2e4", "req-1")
	require.NoError(t, err)
	assert.Equal(t, core.ColorBlack, after.SideToMove)
	require.Len(t, after.Moves, 1)
	assert.Equal(t, "e2e4", after.Moves[0].Move)
	assert.Equal(t, "req-1", after.Moves[0].CorrelationID)

	// Same player twice in a row
	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "d2d4", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	after, err = svc.ApplyMove(ctx, rec.ID, "bob", "e7e5", "")
	require.NoError(t, err)
	assert.Equal(t, core.ColorWhite, after.SideToMove)
	assert.Len(t, after.Moves, 2)

	// After n applied moves it is white's turn iff n is even
	for i, code := range []string{"g1f3", "b8c6", "f1c4", "f8c5"} {
		mover := "alice"
		if i%2 == 1 {
			mover = "bob"
		}
		after, err = svc.ApplyMove(ctx, rec.ID, mover, code, "")
		require.NoError(t, err, code)
	}
	assert.Len(t, after.Moves, 6)
	assert.Equal(t, core.ColorWhite, after.SideToMove)
}

func TestApplyMoveRejectionLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	joined, err := svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)

	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "e2e5", "")
	assert.ErrorIs(t, err, core.ErrIllegalMove)

	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "nope", "")
	assert.ErrorIs(t, err, core.ErrMalformedMove)

	got, err := svc.GetGame(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, joined.Version, got.Version)
	assert.Equal(t, board.StartingFEN, got.FEN)
	assert.Empty(t, got.Moves)
}

func TestApplyMoveFinishesGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)

	moves := []struct {
		mover string
		code  string
	}{
		{"alice", "f2f3"},
		{"bob", "e7e5"},
		{"alice", "g2g4"},
		{"bob", "d8h4"},
	}
	var final game.Record
	for _, mv := range moves {
		final, err = svc.ApplyMove(ctx, rec.ID, mv.mover, mv.code, "")
		require.NoError(t, err, mv.code)
	}

	assert.Equal(t, core.StatusFinished, final.Status)
	assert.Equal(t, core.ResultBlackWin, final.Result)
	assert.Len(t, final.Moves, 4)

	// Finished games accept no further moves from either player
	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "a2a3", "")
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = svc.ApplyMove(ctx, rec.ID, "bob", "a7a6", "")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestApplyMoveConcurrentSameTurn(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)

	// Two racing submissions for white's first move: exactly one lands
	codes := []string{"e2e4", "d2d4"}
	errs := make([]error, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, errs[i] = svc.ApplyMove(ctx, rec.ID, "alice", code, "")
		}(i, code)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, core.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := svc.GetGame(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.Moves, 1)
	assert.Equal(t, core.ColorBlack, got.SideToMove)
}

func TestApplyMoveRejectsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	// Seed a record whose side-to-move cache disagrees with the move log,
	// as a tampered or corrupted durable backend could serve.
	rec := game.New("alice", time.Now().UTC())
	rec.BlackID = "bob"
	rec.Status = core.StatusActive
	rec.SideToMove = core.ColorBlack
	created, err := mem.Create(ctx, rec)
	require.NoError(t, err)

	svc := New(mem, rules.NewStandard(), nil)
	defer svc.Shutdown(time.Second)

	_, err = svc.ApplyMove(ctx, created.ID, "bob", "e7e5", "")
	assert.ErrorIs(t, err, core.ErrInternal)

	got, err := svc.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Moves, "corrupt record must not be mutated")
}

func TestMoveHistory(t *testing.T) {
	ctx := context.Background()
	arc, err := archive.New(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)

	svc := New(store.NewMemory(), rules.NewStandard(), arc)
	defer svc.Shutdown(2 * time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)
	_, err = svc.ApplyMove(ctx, rec.ID, "alice", "e2e4", "req-1")
	require.NoError(t, err)
	_, err = svc.ApplyMove(ctx, rec.ID, "bob", "e7e5", "")
	require.NoError(t, err)

	// The archive writer is async; poll until it catches up
	var rows []archive.MoveRow
	require.Eventually(t, func() bool {
		rows, err = svc.MoveHistory(ctx, rec.ID)
		return err == nil && len(rows) == 2
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, "e2e4", rows[0].MoveCode)
	assert.Equal(t, "req-1", rows[0].CorrelationID)
	assert.Equal(t, "e7e5", rows[1].MoveCode)

	_, err = svc.MoveHistory(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrGameNotFound)
}

func TestMoveHistoryDisabledWithoutArchive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.MoveHistory(ctx, rec.ID)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestListGames(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	g1, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	g2, err := svc.CreateGame(ctx, "carol")
	require.NoError(t, err)
	_, err = svc.JoinGame(ctx, g2.ID, "dave")
	require.NoError(t, err)

	all, err := svc.ListGames(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	waiting, err := svc.ListGames(ctx, true)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, g1.ID, waiting[0].ID)
	for _, rec := range waiting {
		assert.Equal(t, core.StatusWaiting, rec.Status)
	}
}

func TestGetGameNotFound(t *testing.T) {
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	_, err := svc.GetGame(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrGameNotFound)
}

func TestWaitNotifiedOnMove(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	rec, err := svc.CreateGame(ctx, "alice")
	require.NoError(t, err)
	joined, err := svc.JoinGame(ctx, rec.ID, "bob")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ch := svc.RegisterWait(waitCtx, rec.ID, joined.Version)

	go func() {
		_, _ = svc.ApplyMove(ctx, rec.ID, "alice", "e2e4", "")
	}()

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was not notified after a move")
	}
}

func TestWaitRegistryNotify(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := w.RegisterWait("g1", 3, ctx)

	// Same version is not news
	w.NotifyGame("g1", 3)
	select {
	case <-ch:
		t.Fatal("waiter fired on an unchanged version")
	case <-time.After(50 * time.Millisecond):
	}

	// Other games do not wake this waiter
	w.NotifyGame("g2", 4)
	select {
	case <-ch:
		t.Fatal("waiter fired for an unrelated game")
	case <-time.After(50 * time.Millisecond):
	}

	w.NotifyGame("g1", 4)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter was not notified of a new version")
	}
}

func TestWaitRegistryDeliversEveryNotification(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ctx := context.Background()

	// The registered client must be the channel's only receiver; registry
	// teardown must never swallow the wake-up. Run many cycles so a lost
	// notification cannot hide behind scheduling luck.
	for i := 0; i < 200; i++ {
		ch := w.RegisterWait("g1", uint64(i), ctx)
		w.NotifyGame("g1", uint64(i+1))
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("notification lost on cycle %d", i)
		}
	}
}

func TestWaitRegistryClientDisconnect(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	w.RegisterWait("g1", 1, ctx)
	cancel()

	// The waiter is removed on disconnect; a later notification must not
	// panic or block, and new waiters still work.
	time.Sleep(20 * time.Millisecond)
	w.NotifyGame("g1", 2)

	ch2 := w.RegisterWait("g1", 2, context.Background())
	w.NotifyGame("g1", 3)
	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("fresh waiter not notified after an earlier disconnect")
	}
}

func TestArchiveHealthDisabled(t *testing.T) {
	svc := newTestService()
	defer svc.Shutdown(time.Second)

	assert.Equal(t, "disabled", svc.ArchiveHealth())
}
