package console

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestPressEnterGateReportsOutcome(t *testing.T) {
	tests := []struct {
		success bool
		want    string
	}{
		{true, successLine},
		{false, failureLine},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		PressEnterGate{In: strings.NewReader("\n"), Out: &out}.NotifyCompletion(tt.success)
		if !strings.HasPrefix(out.String(), tt.want+"\n") {
			t.Fatalf("output = %q, want prefix %q", out.String(), tt.want)
		}
		if !strings.Contains(out.String(), promptLine) {
			t.Fatalf("output = %q, missing prompt", out.String())
		}
	}
}

func TestPressEnterGateWaitsForNewline(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		PressEnterGate{In: pr, Out: io.Discard}.NotifyCompletion(true)
		close(done)
	}()

	if _, err := pw.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
		t.Fatal("gate released before a newline")
	default:
	}
	if _, err := pw.Write([]byte("\n")); err != nil {
		t.Fatal(err)
	}
	<-done
}

func TestPressEnterGateReleasesOnEOF(t *testing.T) {
	var out bytes.Buffer
	PressEnterGate{In: strings.NewReader(""), Out: &out}.NotifyCompletion(false)
	if out.Len() == 0 {
		t.Fatal("expected output")
	}
}

func TestNop(t *testing.T) {
	Nop{}.NotifyCompletion(true)
}
