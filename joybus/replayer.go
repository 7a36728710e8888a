package joybus

import (
	"encoding/binary"
	"log"

	"github.com/murkland/krec2mp4/krec"
	"github.com/murkland/ringbuf"
)

type State int

const (
	StateAwaitingFrame State = iota
	StateFrameConsumed
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingFrame:
		return "awaiting frame"
	case StateFrameConsumed:
		return "frame consumed"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type frame [krec.MaxPlayers]uint32

// Replayer answers controller polls from a recorded input log. The engine
// calls HandleTransaction for every PIF bus cycle and EndFrame once per
// emulated frame; both must run on the emulation thread.
type Replayer struct {
	players int
	total   int

	frames *ringbuf.RingBuf[frame]
	state  State
	cached frame
	frame  int

	halt func()
}

func NewReplayer(l *krec.Log, halt func()) *Replayer {
	n := l.Frames()

	frames := make([]frame, n)
	for i := range frames {
		for j, s := range l.Frame(i) {
			frames[i][j] = s.Uint32()
		}
	}

	rp := &Replayer{
		players: l.Players(),
		total:   n,
		frames:  ringbuf.New[frame](max(n, 1)),
		halt:    halt,
	}
	rp.frames.Push(frames)
	return rp
}

func (rp *Replayer) consume() {
	if rp.frames.Used() == 0 {
		rp.state = StateFinished
		rp.cached = frame{}
		log.Printf("joybus: input exhausted after %d frames", rp.frame)
		if rp.halt != nil {
			rp.halt()
		}
		return
	}

	var buf [1]frame
	rp.frames.Pop(buf[:], 0)
	rp.cached = buf[0]
	rp.frame++
	rp.state = StateFrameConsumed
}

// HandleTransaction answers one PIF bus cycle in place.
func (rp *Replayer) HandleTransaction(chs []Channel) {
	if len(chs) > 0 && chs[0].Tx && chs[0].Command == CommandReadButtons && len(chs[0].Rx) > 0 && rp.state == StateAwaitingFrame {
		rp.consume()
	}

	for i := range chs {
		if i >= rp.players {
			break
		}
		ch := &chs[i]
		if !ch.Tx {
			continue
		}

		ch.Status &^= StatusErrorMask

		switch ch.Command {
		case CommandStatus, CommandReset:
			copy(ch.Rx, standardController[:])
		case CommandReadButtons:
			if len(ch.Rx) >= 4 {
				binary.BigEndian.PutUint32(ch.Rx, rp.cached[i])
			}
		case CommandReadPak:
			if len(ch.Rx) > pakDataLength {
				ch.Rx[pakDataLength] = noPak
			}
		case CommandWritePak:
			if len(ch.Rx) > 0 {
				ch.Rx[0] = noPak
			}
		}
	}
}

// EndFrame marks a tick boundary. The next channel 0 read consumes a new
// frame.
func (rp *Replayer) EndFrame() {
	if rp.state == StateFrameConsumed {
		rp.state = StateAwaitingFrame
	}
}

func (rp *Replayer) State() State {
	return rp.state
}

func (rp *Replayer) Finished() bool {
	return rp.state == StateFinished
}

// Frame is the number of frames consumed so far.
func (rp *Replayer) Frame() int {
	return rp.frame
}

func (rp *Replayer) Total() int {
	return rp.total
}

func (rp *Replayer) Remaining() int {
	return rp.frames.Used()
}
