package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
)

var (
	ErrNoLimits  = errors.New("no search limits specified")
	ErrBadOption = errors.New("invalid engine option")
)

// Options are applied once per process with setoption. Elo 0 leaves the
// engine at full strength.
type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int
	MultiPV    int
	Elo        int
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 16
	}
	if o.SkillLevel == 0 && o.Elo == 0 {
		o.SkillLevel = 20
	}
	if o.MultiPV <= 0 {
		o.MultiPV = 1
	}
	return o
}

func (o Options) validate() error {
	if o.SkillLevel < 0 || o.SkillLevel > 20 {
		return fmt.Errorf("%w: skill level %d out of range 0-20", ErrBadOption, o.SkillLevel)
	}
	if o.HashMB <= 0 {
		return fmt.Errorf("%w: hash size must be > 0: %d", ErrBadOption, o.HashMB)
	}
	if o.MultiPV <= 0 {
		return fmt.Errorf("%w: multipv must be > 0: %d", ErrBadOption, o.MultiPV)
	}
	if o.Elo < 0 {
		return fmt.Errorf("%w: elo must be >= 0: %d", ErrBadOption, o.Elo)
	}
	return nil
}

type Limits struct {
	Depth    int
	MoveTime time.Duration
	Nodes    int
}

// Score is either centipawns or a mate distance in moves. Mate > 0 means the
// side to move mates; Mate < 0 means it gets mated.
type Score struct {
	CP   int
	Mate int
}

func (s Score) IsMate() bool { return s.Mate != 0 }

type Candidate struct {
	Move      string
	Score     Score
	Depth     int
	Principal []string
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	Ponder     string
}

// Best is the first principal variation, which carries the score of BestMove.
func (r SearchResponse) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Session drives one engine process over stdin/stdout.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	mu     sync.Mutex
	search sync.Mutex
}

func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	opt = opt.withDefaults()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := newSession(stdin, stdoutPipe, logger)
	s.cmd = cmd
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewSessionIO runs the UCI handshake over an already connected pipe pair,
// for engines that are not spawned as a child process.
func NewSessionIO(ctx context.Context, w io.WriteCloser, r io.Reader, opt Options, logger *zap.Logger) (*Session, error) {
	opt = opt.withDefaults()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := newSession(w, r, logger)
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(w io.WriteCloser, r io.Reader, logger *zap.Logger) *Session {
	return &Session{stdin: w, stdout: bufio.NewReader(r), logger: logger}
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	candidates := make(map[int]Candidate)
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("uci_read_failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			if ctx.Err() == nil && searchCtx.Err() != nil {
				// best effort: make the engine drop the search before the
				// session goes back to the pool
				_ = s.send("stop\n")
			}
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "info "):
			if idx, cand, ok := parseInfo(line); ok {
				candidates[idx] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			resp := SearchResponse{Candidates: collapseCandidates(candidates)}
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				resp.BestMove = parts[1]
			}
			if len(parts) >= 4 && parts[2] == "ponder" {
				resp.Ponder = parts[3]
			}
			return resp, nil
		}
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTime > 0 {
		args = append(args, "movetime", strconv.FormatInt(l.MoveTime.Milliseconds(), 10))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if len(args) == 1 {
		return nil, ErrNoLimits
	}
	return args, nil
}

// computeSearchTimeout bounds how long we wait for bestmove. The budget
// itself is enforced by the engine through movetime.
func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTime > 0 {
		return 3*l.MoveTime + 2*time.Second
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		return min(max(base, 6*time.Second), 20*time.Second)
	}
	return 6 * time.Second
}

func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	multipv := 1
	var cand Candidate
	pvIdx := -1

	for i := 0; i < len(parts) && pvIdx == -1; i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "depth":
			if i+1 < len(parts) {
				cand.Depth, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						cand.Score = Score{CP: v}
					case "mate":
						cand.Score = Score{Mate: v}
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
		}
	}
	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	cand.Principal = append([]string(nil), parts[pvIdx:]...)
	cand.Move = cand.Principal[0]
	return multipv, cand, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// NewGame resets engine state between games, retrying the readiness check a
// few times since a busy engine can be slow to answer.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	for attempt := 1; ; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil || attempt == newGameRetryAttempts {
			return err
		}
		s.logger.Warn("uci_ready_retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, cmd := range optionCommands(opt) {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func optionCommands(opt Options) []string {
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", opt.Threads),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d\n", opt.SkillLevel),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
		"setoption name Move Overhead value 50\n",
	}
	if opt.Elo > 0 {
		cmds = append(cmds,
			"setoption name UCI_LimitStrength value true\n",
			fmt.Sprintf("setoption name UCI_Elo value %d\n", opt.Elo),
		)
	}
	return cmds
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
