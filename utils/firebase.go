package utils

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// InitFirebase creates the Firebase app used for ID token verification and
// Firestore access. Without a credentials path the application default
// credentials (or the emulator, via FIRESTORE_EMULATOR_HOST) are used.
func InitFirebase(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "init firebase app")
	}
	return app, nil
}

// NewFirestoreClient opens the configured Firestore database.
func NewFirestoreClient(ctx context.Context, cfg FirebaseConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	database := cfg.FirestoreDatabase
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "init firestore client")
	}
	return client, nil
}
