package gcp

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/googleapi"
)

func TestFolderOf(t *testing.T) {
	tests := []struct {
		object string
		want   string
	}{
		{"_READY", ""},
		{"lecture-notes/_READY", "lecture-notes/"},
		{"2024/week-3/_READY", "2024/week-3/"},
	}
	for _, tt := range tests {
		if got := FolderOf(tt.object); got != tt.want {
			t.Errorf("FolderOf(%q) = %q, want %q", tt.object, got, tt.want)
		}
	}
}

func TestURI(t *testing.T) {
	if got := URI("merged", "week-3/out.pdf"); got != "gs://merged/week-3/out.pdf" {
		t.Fatalf("URI = %q", got)
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"412", &googleapi.Error{Code: http.StatusPreconditionFailed}, true},
		{"wrapped 412", fmt.Errorf("finalize: %w", &googleapi.Error{Code: http.StatusPreconditionFailed}), true},
		{"404", &googleapi.Error{Code: http.StatusNotFound}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPreconditionFailed(tt.err); got != tt.want {
				t.Fatalf("IsPreconditionFailed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusUpdates(t *testing.T) {
	got := StatusUpdates("FAILED", "boom", firestore.Update{Path: "pageCount", Value: 3})
	want := []string{"status", "errorDetails", "pageCount"}
	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d", len(got), len(want))
	}
	for i, p := range want {
		if got[i].Path != p {
			t.Fatalf("update %d path = %q, want %q", i, got[i].Path, p)
		}
	}
	if got := StatusUpdates("DONE", ""); len(got) != 1 {
		t.Fatalf("empty error details should be omitted, got %v", got)
	}
}
