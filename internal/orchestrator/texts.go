package orchestrator

import (
	"fmt"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/msgcat"
)

// requiredKeys are checked once when the controller is built.
var requiredKeys = []string{
	"labels.human", "labels.computer", "labels.white", "labels.black",
	"status.help", "status.new_game", "status.white_starts",
	"status.turn_hint", "status.turn", "status.time_hint", "status.time",
	"status.next", "status.rejected", "status.score",
	"status.checkmate_over", "status.mate_in", "status.stalemate_over",
	"status.draw_over", "status.opening", "status.engine_failed", "status.poisoned",
}

// texts renders the status lines from the message catalog.
type texts struct {
	cat *msgcat.Catalog
}

func newTexts(cat *msgcat.Catalog) (texts, error) {
	if cat == nil {
		return texts{}, fmt.Errorf("message catalog is required")
	}
	if err := cat.Require(requiredKeys...); err != nil {
		return texts{}, err
	}
	return texts{cat: cat}, nil
}

// render falls back to the key itself; every key was checked up front so a
// failure here means a template referenced a field it was not given.
func (t texts) render(key string, data map[string]any) string {
	s, err := t.cat.Render(key, data)
	if err != nil {
		return key
	}
	return s
}

func (t texts) plain(key string) string { return t.render(key, nil) }

func (t texts) controller(engine bool) string {
	if engine {
		return t.plain("labels.computer")
	}
	return t.plain("labels.human")
}

func (t texts) side(s board.Side) string {
	if s == board.White {
		return t.plain("labels.white")
	}
	return t.plain("labels.black")
}

func (t texts) turnHint(plays [2]bool) string {
	return t.render("status.turn_hint", map[string]any{
		"White": t.controller(plays[board.White]),
		"Black": t.controller(plays[board.Black]),
	})
}

func (t texts) turn(plays [2]bool) string {
	return t.render("status.turn", map[string]any{
		"White": t.controller(plays[board.White]),
		"Black": t.controller(plays[board.Black]),
	})
}

func (t texts) timeHint(secs float64) string {
	return t.render("status.time_hint", map[string]any{"Secs": secs})
}

func (t texts) time(secs float64) string {
	return t.render("status.time", map[string]any{"Secs": secs})
}

func (t texts) next(s board.Side) string {
	return t.render("status.next", map[string]any{"Side": t.side(s)})
}

func (t texts) score(n int) string {
	return t.render("status.score", map[string]any{"Score": n})
}

func (t texts) mateIn(n int) string {
	return t.render("status.mate_in", map[string]any{"N": n})
}

func (t texts) draw(method string) string {
	return t.render("status.draw_over", map[string]any{"Method": method})
}

func (t texts) opening(code, title string) string {
	return t.render("status.opening", map[string]any{"Code": code, "Title": title})
}

func (t texts) engineFailed(err error) string {
	return t.render("status.engine_failed", map[string]any{"Error": err.Error()})
}
