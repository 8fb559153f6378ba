// Package parser reads cards out of markdown notes. A card starts at a
// "Q:" line and may carry "A:" and "E:" blocks; "C:" is accepted as an
// older spelling of "E:". A line holding only "---" ends the current card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/flipcard/internal/domain"
)

type field int

const (
	none field = iota
	question
	answer
	explanation
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"E:", explanation},
	{"C:", explanation},
}

const separator = "---"

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without a
// question are dropped.
func Parse(r io.Reader) ([]domain.Card, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	p.finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.cards, nil
}

type cardParser struct {
	cards   []domain.Card
	card    domain.Card
	current field
	block   []string
}

func (p *cardParser) line(line string) {
	if line == separator {
		p.finishCard()
		return
	}

	f, rest, ok := splitPrefix(line)
	if !ok {
		if p.current != none {
			p.block = append(p.block, line)
		}
		return
	}

	// A new question always starts a new card.
	if f == question && p.current != none {
		p.finishCard()
	} else {
		p.flushBlock()
	}
	p.current = f
	p.block = append(p.block, rest)
}

func (p *cardParser) flushBlock() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n")
	switch p.current {
	case question:
		p.card.Question = content
	case answer:
		p.card.Answer = content
	case explanation:
		p.card.Explanation = content
	}
	p.block = nil
}

func (p *cardParser) finishCard() {
	p.flushBlock()
	if p.card.Question != "" {
		p.cards = append(p.cards, p.card)
	}
	p.card = domain.Card{}
	p.current = none
}

func splitPrefix(line string) (field, string, bool) {
	for _, pr := range prefixes {
		if rest, ok := strings.CutPrefix(line, pr.prefix); ok {
			return pr.field, strings.TrimPrefix(rest, " "), true
		}
	}
	return none, "", false
}
