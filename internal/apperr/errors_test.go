package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStatusMessage_ReconcileBeforeSentinels(t *testing.T) {
	// A note deleted between reconcile steps wraps ErrNotFound.
	err := fmt.Errorf("analyze: %w", &ReconcileError{NoteID: "n1", Step: StepTasks, Err: ErrNotFound})
	got := StatusMessage(err)
	if !strings.Contains(got, "partly applied") || !strings.Contains(got, StepTasks) {
		t.Errorf("StatusMessage = %q", got)
	}
}

func TestStatusMessage_Sentinels(t *testing.T) {
	if got := StatusMessage(ErrNotFound); got != "Not found" {
		t.Errorf("not found = %q", got)
	}
	if got := StatusMessage(&ReconcileError{Step: StepEmbed, Err: &EmbeddingError{Err: errors.New("timeout")}}); got != "Embedding failed" {
		t.Errorf("embed step = %q", got)
	}
}
