package models

import "fmt"

// GCSEvent is the data of a Cloud Storage object.finalized CloudEvent.
// Generation arrives as a decimal string.
type GCSEvent struct {
	Bucket     string `json:"bucket"`
	Name       string `json:"name"`
	Generation string `json:"generation"`
}

// MarkerKey identifies one write of one object.
func (e GCSEvent) MarkerKey() string {
	return fmt.Sprintf("%s/%s#%s", e.Bucket, e.Name, e.Generation)
}

// MergeWorkflowRequest is the argument passed to the optional follow-up workflow.
type MergeWorkflowRequest struct {
	JobID        string `json:"jobId"`
	OutputGCSUri string `json:"outputGcsUri"`
	PageCount    int    `json:"pageCount"`
}
