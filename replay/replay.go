// Package replay records what drives the simulation and re-runs it.
// Movement is a pure function of that history, so a replayed journal
// lands every player on bit-identical positions.
package replay

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"drift/world"
)

// Frame is one tick of simulation inputs. Joined applies before Left,
// matching the server's event order.
type Frame struct {
	_msgpack struct{} `msgpack:",as_array"`

	Dt     float64
	Joined []world.PlayerID
	Left   []world.PlayerID
	Inputs map[world.PlayerID]world.Input
}

type Journal struct {
	_msgpack struct{} `msgpack:",as_array"`

	Speed  float64
	Frames []Frame
}

// Recorder accumulates frames from tick zero; replays reconstruct state
// from the origin, so the journal is append-only.
type Recorder struct {
	journal Journal
}

func NewRecorder(speed float64) *Recorder {
	return &Recorder{journal: Journal{Speed: speed}}
}

func (r *Recorder) Record(f Frame) {
	r.journal.Frames = append(r.journal.Frames, f)
}

func (r *Recorder) Len() int {
	return len(r.journal.Frames)
}

func (r *Recorder) Journal() *Journal {
	return &r.journal
}

func (r *Recorder) Save(path string) error {
	b, err := msgpack.Marshal(&r.journal)
	if err != nil {
		return fmt.Errorf("replay: encode journal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("replay: write journal: %w", err)
	}
	return nil
}

func Load(path string) (*Journal, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read journal: %w", err)
	}
	var j Journal
	if err := msgpack.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("replay: decode journal: %w", err)
	}
	return &j, nil
}

// Replay runs the journal through a fresh lobby, applying each frame the
// way the server tick does. The returned lobby holds the final positions.
func Replay(j *Journal) *world.Lobby {
	lobby := world.NewLobby()
	for _, f := range j.Frames {
		for _, id := range f.Joined {
			lobby.Add(id)
		}
		for _, id := range f.Left {
			lobby.Remove(id)
		}
		for id, in := range f.Inputs {
			if p := lobby.Get(id); p != nil {
				p.Input = in
			}
		}
		world.Step(lobby, j.Speed, f.Dt)
	}
	return lobby
}
