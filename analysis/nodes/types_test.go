package pipelinenode

import (
	"errors"
	"testing"
	"time"
)

func TestNewGraphStateValidation(t *testing.T) {
	t.Parallel()

	now := time.Now()

	if _, err := NewGraphState(GraphInput{Ticker: "3778.T", Query: "q"}, 5, 10, now); !errors.Is(err, ErrInvalidRunID) {
		t.Fatalf("expected ErrInvalidRunID, got %v", err)
	}
	if _, err := NewGraphState(GraphInput{RunID: "r", Query: "q"}, 5, 10, now); !errors.Is(err, ErrInvalidTicker) {
		t.Fatalf("expected ErrInvalidTicker, got %v", err)
	}
	if _, err := NewGraphState(GraphInput{RunID: "r", Ticker: "3778.T", Query: "  "}, 5, 10, now); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestNewGraphStateCompanyFallsBackToTicker(t *testing.T) {
	t.Parallel()

	gs, err := NewGraphState(GraphInput{RunID: "r", Ticker: "3778.T", Query: "q"}, 5, 10, time.Now())
	if err != nil {
		t.Fatalf("NewGraphState() error = %v", err)
	}
	if gs.Run.CompanyName != "3778.T" {
		t.Fatalf("company = %q, want ticker fallback", gs.Run.CompanyName)
	}
	if gs.TopK != 5 || gs.NewsLimit != 10 {
		t.Fatalf("limits not carried: %+v", gs)
	}
}

func TestNewsQuery(t *testing.T) {
	t.Parallel()

	if got := newsQuery("Sakura Internet", "government AI contracts"); got != "Sakura Internet government AI contracts" {
		t.Fatalf("newsQuery = %q", got)
	}
	if got := newsQuery("  ", "government AI contracts"); got != "government AI contracts" {
		t.Fatalf("newsQuery without company = %q", got)
	}
}
