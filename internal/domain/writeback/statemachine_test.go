package writeback

import (
	"testing"

	"github.com/clinscribe/clinscribe/internal/domain/note"
)

func TestJobTransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusQueued, StatusInProgress},
		{StatusQueued, StatusRetryableFailed},
		{StatusQueued, StatusDeadFailed},
		{StatusInProgress, StatusSucceeded},
		{StatusInProgress, StatusRetryableFailed},
		{StatusInProgress, StatusDeadFailed},
		{StatusRetryableFailed, StatusQueued},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusQueued, StatusSucceeded},
		{StatusRetryableFailed, StatusInProgress},
		{StatusDeadFailed, StatusQueued},
		{StatusDeadFailed, StatusInProgress},
		{StatusSucceeded, StatusQueued},
		{StatusSucceeded, StatusInProgress},
		{StatusInProgress, StatusQueued},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusDeadFailed, StatusSucceeded} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusInProgress, StatusRetryableFailed} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRequestableStatuses(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusInProgress, StatusSucceeded, StatusFailed} {
		if !RequestableStatus(s) {
			t.Errorf("%s should be requestable", s)
		}
	}
	for _, s := range []Status{StatusRetryableFailed, StatusDeadFailed, Status("bogus")} {
		if RequestableStatus(s) {
			t.Errorf("%s should not be requestable", s)
		}
	}
}

func TestNoteStatusMapping(t *testing.T) {
	cases := map[Status]note.Status{
		StatusQueued:          note.StatusWritebackQueued,
		StatusInProgress:      note.StatusWritebackInProgress,
		StatusRetryableFailed: note.StatusWritebackFailed,
		StatusDeadFailed:      note.StatusWritebackFailed,
		StatusSucceeded:       note.StatusWritebackSucceeded,
	}
	for job, want := range cases {
		if got := noteStatusFor(job); got != want {
			t.Errorf("noteStatusFor(%s) = %s, want %s", job, got, want)
		}
	}
}
