package replay

import (
	"path/filepath"
	"testing"

	"drift/world"
)

// sessionJournal is a journal with joins, a mid-run leave, input changes,
// and awkward dts. Inputs persist across frames that do not mention a
// player, exactly like the live lobby.
func sessionJournal() *Journal {
	return &Journal{
		Speed: 100,
		Frames: []Frame{
			{Dt: 0, Joined: []world.PlayerID{1}},
			{Dt: 1.0 / 3.0, Inputs: map[world.PlayerID]world.Input{1: {Right: true}}},
			{Dt: 1.0 / 7.0}, // held input keeps applying
			{Dt: 0.5, Joined: []world.PlayerID{2}, Inputs: map[world.PlayerID]world.Input{2: {Up: true}}},
			{Dt: 0.25, Left: []world.PlayerID{2}},
			{Dt: 0.125, Inputs: map[world.PlayerID]world.Input{1: {Down: true}}},
		},
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	first := Replay(sessionJournal()).Positions()
	second := Replay(sessionJournal()).Positions()

	if len(first) != 1 {
		t.Fatalf("replayed lobby has %d players, want 1", len(first))
	}
	if first[1] != second[1] {
		t.Fatalf("two replays disagree: %v vs %v", first[1], second[1])
	}
	if first[1] == (world.Vector{}) {
		t.Fatalf("replay did not move anyone")
	}
}

func TestReplayKeepsHeldInputAcrossFrames(t *testing.T) {
	j := &Journal{
		Speed: 100,
		Frames: []Frame{
			{Dt: 0, Joined: []world.PlayerID{1}},
			{Dt: 0.5, Inputs: map[world.PlayerID]world.Input{1: {Right: true}}},
			{Dt: 0.5}, // no input entry: the held one applies again
		},
	}

	got := Replay(j).Get(1).Pos
	if got != (world.Vector{X: 100, Y: 0}) {
		t.Fatalf("position = %v, want (100, 0)", got)
	}
}

func TestReplayJoinAndLeaveWithinOneFrame(t *testing.T) {
	j := &Journal{
		Speed: 100,
		Frames: []Frame{
			{Dt: 1, Joined: []world.PlayerID{1}, Left: []world.PlayerID{1}},
		},
	}

	l := Replay(j)
	if l.Len() != 0 {
		t.Fatalf("lobby has %d players, want 0", l.Len())
	}
}

func TestReplayIgnoresInputForUnknownPlayer(t *testing.T) {
	j := &Journal{
		Speed: 100,
		Frames: []Frame{
			{Dt: 0, Joined: []world.PlayerID{1}},
			{Dt: 1, Inputs: map[world.PlayerID]world.Input{9: {Up: true}}},
		},
	}

	l := Replay(j)
	if l.Len() != 1 {
		t.Fatalf("lobby has %d players, want 1", l.Len())
	}
	if got := l.Get(1).Pos; got != (world.Vector{}) {
		t.Fatalf("player 1 moved to %v on someone else's input", got)
	}
}

func TestRecorderSaveLoadRoundTrip(t *testing.T) {
	rec := NewRecorder(100)
	for _, f := range sessionJournal().Frames {
		rec.Record(f)
	}
	if rec.Len() != 6 {
		t.Fatalf("recorder has %d frames, want 6", rec.Len())
	}

	path := filepath.Join(t.TempDir(), "journal.bin")
	if err := rec.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Speed != 100 {
		t.Fatalf("loaded speed = %v, want 100", loaded.Speed)
	}
	if len(loaded.Frames) != rec.Len() {
		t.Fatalf("loaded %d frames, want %d", len(loaded.Frames), rec.Len())
	}

	direct := Replay(rec.Journal()).Positions()
	viaDisk := Replay(loaded).Positions()
	if len(direct) != len(viaDisk) {
		t.Fatalf("lobby sizes differ: %d vs %d", len(direct), len(viaDisk))
	}
	for id, pos := range direct {
		if viaDisk[id] != pos {
			t.Fatalf("player %d: %v direct vs %v via disk", id, pos, viaDisk[id])
		}
	}
}

func TestLoadMissingJournalFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Fatalf("loaded a journal that does not exist")
	}
}
