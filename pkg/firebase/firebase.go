package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and the clients built from it
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Firestore   *firestore.Client
	Bucket      *gcs.BucketHandle
	BucketName  string
}

// Settings configure InitFirebase.
type Settings struct {
	CredentialsPath string
	ProjectID       string
	StorageBucket   string
}

// InitFirebase initializes the Firebase application with its auth, Firestore and storage clients
func InitFirebase(ctx context.Context, s Settings) (*App, error) {
	if s.CredentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	// Check if the credentials file exists
	if _, err := os.Stat(s.CredentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", s.CredentialsPath)
	}

	opt := option.WithCredentialsFile(s.CredentialsPath)
	conf := &firebase.Config{ProjectID: s.ProjectID, StorageBucket: s.StorageBucket}

	firebaseApp, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	fs, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp, AuthClient: authClient, Firestore: fs}
	if s.StorageBucket != "" {
		storageClient, err := firebaseApp.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting storage client: %w", err)
		}
		bucket, err := storageClient.DefaultBucket()
		if err != nil {
			return nil, fmt.Errorf("error getting storage bucket: %w", err)
		}
		app.Bucket = bucket
		app.BucketName = s.StorageBucket
	}

	log.Println("Firebase app, auth, firestore and storage clients initialized successfully!")
	return app, nil
}

// Close releases the Firestore client.
func (a *App) Close() error {
	if a.Firestore == nil {
		return nil
	}
	return a.Firestore.Close()
}
