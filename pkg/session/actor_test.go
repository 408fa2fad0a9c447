package session

import (
	"context"
	"testing"
	"time"

	"chesstty/pkg/chessmodel"

	"github.com/google/uuid"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestActor(t *testing.T, mode GameMode) (Handle, Snapshot) {
	t.Helper()
	h, snap := Start(context.Background(), StartOptions{ID: uuid.New(), Mode: mode})
	t.Cleanup(func() {
		done := make(chan struct{})
		h.Send(Shutdown{Done: done})
		<-done
	})
	return h, snap
}

func mustMove(t *testing.T, uci string) chessmodel.Move {
	t.Helper()
	mv, err := chessmodel.ParseUCIMove(uci)
	require.NoError(t, err)
	return mv
}

func TestMakeMoveAppliesLegalMove(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: HumanVsHuman})

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	require.NoError(t, <-reply)

	snapReply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: snapReply})
	snap := <-snapReply
	assert.Equal(t, 1, snap.MoveCount())
	assert.Equal(t, chessmodel.Black, snap.SideToMove)
}

func TestMakeMoveRejectsIllegalMove(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: HumanVsHuman})

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e5"), Reply: reply})
	err := <-reply
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindIllegal, serr.Kind)
}

func TestMakeMoveRejectsWhenNotPlaying(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: Analysis})

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	err := <-reply
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNotPlaying, serr.Kind)
}

func TestPauseAndUnpauseRoundTrip(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: HumanVsHuman})

	reply := make(chan error, 1)
	h.Send(Pause{Reply: reply})
	require.NoError(t, <-reply)

	snapReply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: snapReply})
	assert.Equal(t, Paused, (<-snapReply).Phase)

	reply = make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	err := <-reply
	require.Error(t, err)

	reply = make(chan error, 1)
	h.Send(Unpause{Reply: reply})
	require.NoError(t, <-reply)

	h.Send(GetSnapshot{Reply: snapReply})
	assert.Equal(t, Playing, (<-snapReply).Phase)
}

func TestTickTimesOutWhiteWhenClockExpires(t *testing.T) {
	h, _ := Start(context.Background(), StartOptions{
		ID:   uuid.New(),
		Mode: GameMode{Kind: HumanVsHuman},
		Timer: TimerState{
			WhiteRemainingMs: 50,
			BlackRemainingMs: 60000,
			ActiveSide:       lang.Some(chessmodel.White),
		},
	})
	t.Cleanup(func() {
		done := make(chan struct{})
		h.Send(Shutdown{Done: done})
		<-done
	})

	ch, _ := h.Subscribe()
	h.Send(Tick{Now: time.Now()})

	for ev := range ch {
		if ge, ok := ev.(GameEnded); ok {
			assert.Equal(t, chessmodel.BlackWins, ge.Result.Result)
			assert.Equal(t, "Timeout", ge.Result.Reason)
			return
		}
	}
	t.Fatal("expected a GameEnded event")
}

func TestUndoOnlyAllowedAtLowSkillHumanVsEngine(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: HumanVsHuman})

	reply := make(chan error, 1)
	h.Send(UndoMove{Reply: reply})
	err := <-reply
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNotAllowed, serr.Kind)
}

func TestUndoPopsEnginePlyAndHumanPlyTogether(t *testing.T) {
	h, _ := startTestActor(t, GameMode{
		Kind:      HumanVsEngine,
		HumanSide: lang.Some(chessmodel.White),
	})
	setSkill := make(chan error, 1)
	h.Send(SetEngine{Enabled: false, Skill: 1, Reply: setSkill})
	require.NoError(t, <-setSkill)

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	require.NoError(t, <-reply)

	reply = make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e7e5"), Reply: reply})
	require.NoError(t, <-reply)

	snapReply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: snapReply})
	require.Equal(t, 2, (<-snapReply).MoveCount())

	undoReply := make(chan error, 1)
	h.Send(UndoMove{Reply: undoReply})
	require.NoError(t, <-undoReply)

	h.Send(GetSnapshot{Reply: snapReply})
	assert.Equal(t, 0, (<-snapReply).MoveCount())
}

func TestResetGameClearsHistory(t *testing.T) {
	h, _ := startTestActor(t, GameMode{Kind: HumanVsHuman})

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	require.NoError(t, <-reply)

	reply = make(chan error, 1)
	h.Send(ResetGame{Reply: reply})
	require.NoError(t, <-reply)

	snapReply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: snapReply})
	snap := <-snapReply
	assert.Equal(t, 0, snap.MoveCount())
	assert.Equal(t, Playing, snap.Phase)
}
