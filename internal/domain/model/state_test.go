package model_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

func TestMessageStateCanAdvance(t *testing.T) {
	tests := []struct {
		name string
		from model.MessageState
		to   model.MessageState
		want bool
	}{
		{"sent to delivered", model.StateSent, model.StateDelivered, true},
		{"sent to read", model.StateSent, model.StateRead, true},
		{"delivered to read", model.StateDelivered, model.StateRead, true},
		{"delivered to sent", model.StateDelivered, model.StateSent, false},
		{"read to delivered", model.StateRead, model.StateDelivered, false},
		{"read to sent", model.StateRead, model.StateSent, false},
		{"sent to sent", model.StateSent, model.StateSent, false},
		{"read to read", model.StateRead, model.StateRead, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanAdvance(tc.to); got != tc.want {
				t.Errorf("CanAdvance(%v -> %v) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestParseMessageState(t *testing.T) {
	for _, s := range []model.MessageState{model.StateSent, model.StateDelivered, model.StateRead} {
		if got := model.ParseMessageState(s.String()); got != s {
			t.Errorf("ParseMessageState(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if got := model.ParseMessageState("garbage"); got != 0 {
		t.Errorf("ParseMessageState on unknown input = %v, want zero", got)
	}
}

func TestUserSetAddIsIdempotent(t *testing.T) {
	var set model.UserSet
	id := uuid.New()

	if set.Has(id) {
		t.Fatal("empty set must not contain anything")
	}
	if !set.Add(id) {
		t.Fatal("first add must report a change")
	}
	if set.Add(id) {
		t.Fatal("second add of the same ID must be a no-op")
	}
	if len(set) != 1 || !set.Has(id) {
		t.Fatalf("set corrupted: %v", set)
	}
}

func TestDirectConversationOther(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	conv := model.DirectConversation{ID: uuid.New(), Members: [2]uuid.UUID{a, b}}

	got, err := conv.Other(a)
	if err != nil || got != b {
		t.Fatalf("Other(a) = %v, %v; want %v", got, err, b)
	}
	got, err = conv.Other(b)
	if err != nil || got != a {
		t.Fatalf("Other(b) = %v, %v; want %v", got, err, a)
	}
	if _, err := conv.Other(uuid.New()); err != model.ErrNotMember {
		t.Fatalf("Other(stranger) error = %v, want ErrNotMember", err)
	}
}
