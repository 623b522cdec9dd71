package chatbot

import (
	"errors"
	"testing"

	"github.com/mastermind-creat/tech.safi-sub001/internal/models"
	"github.com/mastermind-creat/tech.safi-sub001/internal/testutil"
)

func TestInitialize(t *testing.T) {
	ok := &testutil.MockSession{Reply: "hi"}
	tests := []struct {
		name      string
		factory   SessionFactory
		wantState models.ConnectivityState
		wantNil   bool
	}{
		{"success", func(string) (Session, error) { return ok, nil }, models.StateActive, false},
		{"construction error", func(string) (Session, error) { return nil, errors.New("bad key") }, models.StateFallback, true},
		{"nil session", func(string) (Session, error) { return nil, nil }, models.StateFallback, true},
		{"no factory", nil, models.StateFallback, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, state := Initialize("key", tt.factory)
			if state != tt.wantState {
				t.Errorf("expected %v, got %v", tt.wantState, state)
			}
			if (session == nil) != tt.wantNil {
				t.Errorf("unexpected session %v", session)
			}
		})
	}
}

func TestInitialize_PassesCredential(t *testing.T) {
	var seen string
	Initialize("sk-test", func(c string) (Session, error) {
		seen = c
		return &testutil.MockSession{}, nil
	})
	if seen != "sk-test" {
		t.Errorf("credential not passed to factory: %q", seen)
	}
}
