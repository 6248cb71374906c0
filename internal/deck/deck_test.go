package deck

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/phanngoc/olympia/internal/model"
	"github.com/phanngoc/olympia/internal/quiz"
)

func sample() []model.Question {
	return []model.Question{
		{Prompt: "Capital of Vietnam?", ExpectedAnswer: "Hanoi"},
		{Prompt: "Largest planet?", ExpectedAnswer: "Jupiter"},
		{Prompt: "Author of Truyen Kieu?", ExpectedAnswer: "Nguyen Du"},
	}
}

func TestDeckDealsEachQuestionOncePerPass(t *testing.T) {
	ctx := context.Background()
	d := NewWithSource(sample(), rand.NewSource(1))

	for pass := 0; pass < 2; pass++ {
		seen := map[int64]bool{}
		for i := 0; i < d.Len(); i++ {
			q, err := d.FetchRandomQuestion(ctx)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if seen[q.ID] {
				t.Fatalf("pass %d: question %d dealt twice", pass, q.ID)
			}
			seen[q.ID] = true
		}
		if len(seen) != 3 {
			t.Fatalf("pass %d: expected 3 distinct questions, got %d", pass, len(seen))
		}
	}
}

func TestDeckLookup(t *testing.T) {
	ctx := context.Background()
	d := New(sample())
	q, err := d.LookupQuestion(ctx, 2)
	if err != nil || q.ExpectedAnswer != "Jupiter" || q.ID != 2 {
		t.Fatalf("unexpected lookup: %+v %v", q, err)
	}
	if _, err := d.LookupQuestion(ctx, 4); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestEmptyDeck(t *testing.T) {
	d := New(nil)
	if _, err := d.FetchRandomQuestion(context.Background()); !errors.Is(err, quiz.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
