package models

import (
	"encoding/json"
	"testing"
)

func TestGCSEventFromCloudEventData(t *testing.T) {
	data := []byte(`{"bucket":"inbox","name":"week-3/_READY","generation":"1718000000000001","contentType":"text/plain"}`)
	var e GCSEvent
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got, want := e.MarkerKey(), "inbox/week-3/_READY#1718000000000001"; got != want {
		t.Fatalf("MarkerKey = %q, want %q", got, want)
	}
}

func TestMergeWorkflowRequestFieldNames(t *testing.T) {
	b, err := json.Marshal(MergeWorkflowRequest{JobID: "j1", OutputGCSUri: "gs://out/a/out.pdf", PageCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"jobId":"j1","outputGcsUri":"gs://out/a/out.pdf","pageCount":4}`
	if string(b) != want {
		t.Fatalf("payload = %s, want %s", b, want)
	}
}
