/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	_ "embed"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed bank.yaml
var bankYAML []byte

type Clue struct {
	Prompt string `yaml:"prompt"`
	Answer string `yaml:"answer"`
}

type CategoryDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Clues       []Clue `yaml:"clues"`
}

type FinalClue struct {
	Category string `yaml:"category"`
	Prompt   string `yaml:"prompt"`
	Answer   string `yaml:"answer"`
}

// Bank is the static set of categories and Final Jeopardy clues boards
// are assembled from.
type Bank struct {
	Categories []CategoryDef `yaml:"categories"`
	Finals     []FinalClue   `yaml:"finals"`
}

var (
	defaultBank     *Bank
	defaultBankErr  error
	defaultBankOnce sync.Once
)

// DefaultBank returns the question bank compiled into the binary.
func DefaultBank() (*Bank, error) {
	defaultBankOnce.Do(func() {
		defaultBank, defaultBankErr = ParseBank(bankYAML)
	})
	return defaultBank, defaultBankErr
}

// ParseBank decodes and validates a YAML question bank.
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}

	if len(b.Categories) < CategoriesPerBoard {
		return nil, fmt.Errorf("question bank has %d categories, need at least %d", len(b.Categories), CategoriesPerBoard)
	}
	if len(b.Finals) == 0 {
		return nil, errors.New("question bank has no final clues")
	}

	seen := make(map[string]bool, len(b.Categories))
	for _, c := range b.Categories {
		if c.ID == "" || strings.Contains(c.ID, "/") {
			return nil, fmt.Errorf("invalid category id %q", c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		seen[c.ID] = true

		if len(c.Clues) != QuestionsPerCategory {
			return nil, fmt.Errorf("category %q has %d clues, need %d", c.ID, len(c.Clues), QuestionsPerCategory)
		}
	}

	return &b, nil
}

func (b *Bank) Category(id string) (CategoryDef, bool) {
	for _, c := range b.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return CategoryDef{}, false
}

// CategoryIDs lists every category id in bank order.
func (b *Bank) CategoryIDs() []string {
	ids := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// boardSeed derives the Daily Double placement seed from inputs every
// replica shares, so independently built boards agree.
func boardSeed(roomCode string, round int, categoryIDs []string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s", roomCode, round, strings.Join(categoryIDs, ","))
	return h.Sum64()
}

func dailyDoubleCount(round int) int {
	if round >= 2 {
		return 2
	}
	return 1
}

// buildBoard assembles a round's board from the bank. It returns false if
// any id is unknown or repeated.
func (b *Bank) buildBoard(roomCode string, round int, categoryIDs []string) (*Board, bool) {
	ids := categoryIDs[:CategoriesPerBoard]

	board := &Board{Categories: make([]Category, 0, CategoriesPerBoard)}
	used := make(map[string]bool, CategoriesPerBoard)

	type slot struct{ c, q int }
	var eligible []slot

	for ci, id := range ids {
		def, ok := b.Category(id)
		if !ok || used[id] {
			return nil, false
		}
		used[id] = true

		cat := Category{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Questions:   make([]Question, 0, QuestionsPerCategory),
		}
		for qi, clue := range def.Clues {
			value := PointValues[qi] * round
			cat.Questions = append(cat.Questions, Question{
				ID:       fmt.Sprintf("r%d/%s/%d", round, def.ID, value),
				Category: def.ID,
				Value:    value,
				Prompt:   clue.Prompt,
				Answer:   clue.Answer,
			})
			if value >= 600*round {
				eligible = append(eligible, slot{ci, qi})
			}
		}
		board.Categories = append(board.Categories, cat)
	}

	seed := boardSeed(roomCode, round, ids)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for _, i := range rng.Perm(len(eligible))[:dailyDoubleCount(round)] {
		s := eligible[i]
		board.Categories[s.c].Questions[s.q].IsDailyDouble = true
	}

	return board, true
}

func (b *Bank) finalClue(roomCode string) FinalClue {
	h := fnv.New32a()
	h.Write([]byte(roomCode))
	return b.Finals[int(h.Sum32()%uint32(len(b.Finals)))]
}
