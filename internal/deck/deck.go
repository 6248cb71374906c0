// Package deck serves questions from an in-memory list, shuffled without repeats.
package deck

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

// ErrUnknownQuestion is returned by LookupQuestion for an id the deck never dealt.
var ErrUnknownQuestion = errors.New("unknown question")

// Deck deals every question once in random order, then reshuffles.
type Deck struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	questions []model.Question
	order     []int
	next      int
}

// New returns a Deck seeded with the current time. Questions get ids 1..n.
func New(questions []model.Question) *Deck {
	return NewWithSource(questions, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource returns a Deck that shuffles with src.
func NewWithSource(questions []model.Question, src rand.Source) *Deck {
	qs := make([]model.Question, len(questions))
	for i, q := range questions {
		q.ID = int64(i + 1)
		qs[i] = q
	}
	return &Deck{rnd: rand.New(src), questions: qs}
}

// Len returns the number of distinct questions.
func (d *Deck) Len() int {
	return len(d.questions)
}

// FetchRandomQuestion deals the next question.
func (d *Deck) FetchRandomQuestion(ctx context.Context) (model.Question, error) {
	if err := ctx.Err(); err != nil {
		return model.Question{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.questions) == 0 {
		return model.Question{}, fmt.Errorf("%w: deck is empty", quiz.ErrProviderUnavailable)
	}
	if d.next >= len(d.order) {
		d.shuffle()
	}
	q := d.questions[d.order[d.next]]
	d.next++
	return q, nil
}

// LookupQuestion returns the question with id.
func (d *Deck) LookupQuestion(_ context.Context, id int64) (model.Question, error) {
	if id < 1 || id > int64(len(d.questions)) {
		return model.Question{}, fmt.Errorf("%w: id %d", ErrUnknownQuestion, id)
	}
	return d.questions[id-1], nil
}

func (d *Deck) shuffle() {
	d.order = d.rnd.Perm(len(d.questions))
	d.next = 0
}
