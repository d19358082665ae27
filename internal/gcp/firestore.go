package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// NewFirestoreClient creates a Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// FindByField returns the first document in collection whose field equals value,
// or nil when there is none.
func FindByField(ctx context.Context, client *firestore.Client, collection, field string, value any) (*firestore.DocumentRef, error) {
	docs, err := client.Collection(collection).Where(field, "==", value).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0].Ref, nil
}

// StatusUpdates builds the update list for a status change. Extra fields are
// appended as given; errDetails is only set when non-empty.
func StatusUpdates(status, errDetails string, extra ...firestore.Update) []firestore.Update {
	updates := []firestore.Update{{Path: "status", Value: status}}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	return append(updates, extra...)
}
