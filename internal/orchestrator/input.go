package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/Cheese-ChessFront/internal/board"
)

// InputKind enumerates what the presentation can send.
type InputKind uint8

const (
	InputClick InputKind = iota + 1
	InputNewGame
	InputToggleSide
	InputTimeUp
	InputTimeDown
	InputSetTime
	InputDumpMoves
)

var inputNames = map[InputKind]string{
	InputClick:      "click",
	InputNewGame:    "new_game",
	InputToggleSide: "toggle_side",
	InputTimeUp:     "time_up",
	InputTimeDown:   "time_down",
	InputSetTime:    "set_time",
	InputDumpMoves:  "dump_moves",
}

func (k InputKind) String() string {
	if n, ok := inputNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseInputKind is the inverse of String.
func ParseInputKind(s string) (InputKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range inputNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown input kind %q", s)
}

// Input is one queued event.
type Input struct {
	Kind    InputKind
	Cell    board.Cell
	Side    board.Side
	Seconds float64
}

func Click(c board.Cell) Input      { return Input{Kind: InputClick, Cell: c} }
func NewGame() Input                { return Input{Kind: InputNewGame} }
func ToggleSide(s board.Side) Input { return Input{Kind: InputToggleSide, Side: s} }
func TimeUp() Input                 { return Input{Kind: InputTimeUp} }
func TimeDown() Input               { return Input{Kind: InputTimeDown} }
func SetTime(secs float64) Input    { return Input{Kind: InputSetTime, Seconds: secs} }
func DumpMoves() Input              { return Input{Kind: InputDumpMoves} }

// ErrQuit is returned by ParseCommand for the quit command.
var ErrQuit = fmt.Errorf("quit requested")

// ParseCommand turns a console line into input events: "e2", "e2 e4",
// "new", "1", "2", "+", "-", "time 1.5", "moves", "quit".
func ParseCommand(line string) ([]Input, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil, nil
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return nil, ErrQuit
	case "new", "0":
		return []Input{NewGame()}, nil
	case "1":
		return []Input{ToggleSide(board.White)}, nil
	case "2":
		return []Input{ToggleSide(board.Black)}, nil
	case "moves", "m":
		return []Input{DumpMoves()}, nil
	case "time", "t":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: time <seconds>")
		}
		secs, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse seconds: %w", err)
		}
		return []Input{SetTime(secs)}, nil
	}
	if strings.Trim(fields[0], "+") == "" {
		return repeat(TimeUp(), len(fields[0])), nil
	}
	if strings.Trim(fields[0], "-") == "" {
		return repeat(TimeDown(), len(fields[0])), nil
	}

	out := make([]Input, 0, 2)
	for _, f := range fields {
		// "e2e4" is accepted as two clicks
		for len(f) >= 2 {
			c, err := board.ParseCell(f[:2])
			if err != nil {
				return nil, err
			}
			out = append(out, Click(c))
			f = f[2:]
		}
		if f != "" {
			return nil, fmt.Errorf("%w: %q", board.ErrInvalidCell, f)
		}
	}
	return out, nil
}

func repeat(in Input, n int) []Input {
	out := make([]Input, n)
	for i := range out {
		out[i] = in
	}
	return out
}

// InputQueue collects events from any goroutine; the loop drains it once per
// tick.
type InputQueue struct {
	mu    sync.Mutex
	items []Input
}

func (q *InputQueue) Push(in ...Input) {
	q.mu.Lock()
	q.items = append(q.items, in...)
	q.mu.Unlock()
}

// Drain removes and returns everything queued so far.
func (q *InputQueue) Drain() []Input {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
