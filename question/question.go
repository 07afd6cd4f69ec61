// Package question holds the trivia catalog rooms draw their questions from.
package question

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

//go:embed catalog.json
var builtinCatalog []byte

var ErrEmptyCatalog = errors.New("question catalog is empty")

// Question is the full form, correct answer included. Only the host sees it.
type Question struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Prompt   string   `json:"question"`
	Choices  []string `json:"choices"`
	Answer   string   `json:"answer"`
}

// PublicQuestion is what players receive.
type PublicQuestion struct {
	Category string   `json:"category"`
	Prompt   string   `json:"question"`
	Choices  []string `json:"choices"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		Category: q.Category,
		Prompt:   q.Prompt,
		Choices:  append([]string(nil), q.Choices...),
	}
}

// Source draws questions for a room.
type Source interface {
	Draw(n int) []Question
}

// Catalog is an immutable list of questions.
type Catalog struct {
	items []Question
	rng   *rand.Rand
	mutex sync.Mutex // guards rng
}

// NewCatalog copies items into a catalog. seed 0 means time-seeded.
func NewCatalog(items []Question, seed int64) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Catalog{
		items: append([]Question(nil), items...),
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// LoadBuiltin parses the catalog shipped with the binary.
func LoadBuiltin() (*Catalog, error) {
	var items []Question
	if err := json.Unmarshal(builtinCatalog, &items); err != nil {
		return nil, fmt.Errorf("parse builtin catalog: %w", err)
	}
	return NewCatalog(items, 0)
}

// Draw returns up to n distinct questions in random order.
func (c *Catalog) Draw(n int) []Question {
	if n <= 0 {
		return []Question{}
	}
	if n > len(c.items) {
		n = len(c.items)
	}

	c.mutex.Lock()
	perm := c.rng.Perm(len(c.items))
	c.mutex.Unlock()

	out := make([]Question, 0, n)
	for _, i := range perm[:n] {
		q := c.items[i]
		q.Choices = append([]string(nil), q.Choices...)
		out = append(out, q)
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.items)
}
