package rtcvoice

import (
	"testing"
)

func TestConversationStore_SpeechLifecycle(t *testing.T) {
	store := NewConversationStore()

	// started → stopped → committed → transcript
	id := store.CreateEphemeral()
	if id == "" {
		t.Fatal("CreateEphemeral returned empty ID")
	}
	store.UpdateEphemeral(TurnUpdate{Status: Ptr(TurnSpeaking)})
	store.UpdateEphemeral(TurnUpdate{Text: Ptr(processingPlaceholder), Status: Ptr(TurnProcessing)})

	turns := store.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn mid-utterance, got %d", len(turns))
	}
	if turns[0].Text != processingPlaceholder || turns[0].Status != TurnProcessing {
		t.Errorf("mid-utterance turn = %+v", turns[0])
	}

	store.UpdateEphemeral(TurnUpdate{Text: Ptr("what time is it"), Status: Ptr(TurnComplete), IsFinal: Ptr(true)})
	store.FinalizeEphemeral()

	turns = store.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected exactly 1 turn after transcript, got %d", len(turns))
	}
	final := turns[0]
	if final.ID != id {
		t.Error("finalized turn should keep its original ID")
	}
	if final.Text != "what time is it" || !final.IsFinal || final.Status != TurnComplete || final.Role != RoleUser {
		t.Errorf("final turn = %+v", final)
	}
	if store.HasEphemeral() {
		t.Error("no ephemeral turn should remain after finalize")
	}
}

func TestConversationStore_CreateEphemeralIdempotent(t *testing.T) {
	store := NewConversationStore()

	first := store.CreateEphemeral()
	second := store.CreateEphemeral()

	if first != second {
		t.Errorf("overlapping creation allocated two turns: %q vs %q", first, second)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 turn, got %d", store.Len())
	}

	// After finalize, the next utterance gets a fresh identity.
	store.FinalizeEphemeral()
	third := store.CreateEphemeral()
	if third == first {
		t.Error("a finalized turn's ID must not be reused")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 turns, got %d", store.Len())
	}
}

func TestConversationStore_UpdateWithoutEphemeral(t *testing.T) {
	store := NewConversationStore()
	store.AppendAssistant("Hi")

	// No ephemeral turn is tracked: a stray transcript must not touch the
	// assistant turn.
	store.UpdateEphemeral(TurnUpdate{Text: Ptr("ghost")})

	turns := store.Turns()
	if turns[0].Text != "Hi" {
		t.Errorf("assistant turn mutated: %+v", turns[0])
	}
}

func TestConversationStore_Ordering(t *testing.T) {
	store := NewConversationStore()

	store.CreateEphemeral()
	store.UpdateEphemeral(TurnUpdate{Text: Ptr("first question"), IsFinal: Ptr(true), Status: Ptr(TurnComplete)})
	store.FinalizeEphemeral()
	store.AppendAssistant("first answer")
	store.AppendUserFinal("typed follow-up")
	store.AppendAssistant("second answer")

	turns := store.Turns()
	want := []struct {
		role Role
		text string
	}{
		{RoleUser, "first question"},
		{RoleAssistant, "first answer"},
		{RoleUser, "typed follow-up"},
		{RoleAssistant, "second answer"},
	}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i, w := range want {
		if turns[i].Role != w.role || turns[i].Text != w.text {
			t.Errorf("turn %d = {%s %q}, want {%s %q}", i, turns[i].Role, turns[i].Text, w.role, w.text)
		}
		if !turns[i].IsFinal {
			t.Errorf("turn %d should be final", i)
		}
	}
}

func TestConversationStore_TurnsIsSnapshot(t *testing.T) {
	store := NewConversationStore()
	store.AppendAssistant("original")

	snapshot := store.Turns()
	snapshot[0].Text = "mutated"

	if store.Turns()[0].Text != "original" {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestConversationStore_Reset(t *testing.T) {
	store := NewConversationStore()
	store.CreateEphemeral()
	store.AppendAssistant("Hi")

	store.Reset()

	if store.Len() != 0 {
		t.Errorf("expected empty log after reset, got %d turns", store.Len())
	}
	if store.HasEphemeral() {
		t.Error("ephemeral identity should be cleared by reset")
	}

	// The store is reusable after reset.
	store.CreateEphemeral()
	if store.Len() != 1 {
		t.Errorf("expected 1 turn after reuse, got %d", store.Len())
	}
}
