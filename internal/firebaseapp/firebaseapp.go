// Package firebaseapp builds the Firebase Auth and Firestore clients from
// configuration.
package firebaseapp

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/jredh-dev/greenswap/config"
)

// Config selects the Firebase project and how to reach it.
type Config struct {
	ProjectID             string
	CredentialsPath       string
	FirestoreDatabase     string
	UseEmulator           bool
	EmulatorAuthHost      string
	EmulatorFirestoreHost string
}

// FromConfig maps the firebase section of the process configuration.
func FromConfig(c config.FirebaseConfig) Config {
	return Config{
		ProjectID:             c.ProjectID,
		CredentialsPath:       c.CredentialsPath,
		FirestoreDatabase:     c.FirestoreDatabase,
		UseEmulator:           c.UseEmulator,
		EmulatorAuthHost:      c.EmulatorAuthHost,
		EmulatorFirestoreHost: c.EmulatorFirestoreHost,
	}
}

// Enabled reports whether a project is configured.
func (c Config) Enabled() bool {
	return c.ProjectID != ""
}

// Clients holds the clients built by Open. Close releases them.
type Clients struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// Close releases the Firestore connection.
func (c *Clients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}

// Open connects to Firebase. It returns (nil, nil) when no project is
// configured so callers can run without Firebase.
func Open(ctx context.Context, cfg Config) (*Clients, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	if cfg.UseEmulator {
		// The SDKs pick emulator hosts up from the environment.
		os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.EmulatorAuthHost)
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorFirestoreHost)
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" && !cfg.UseEmulator {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	database := cfg.FirestoreDatabase
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	fs, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}

	return &Clients{App: app, Auth: authClient, Firestore: fs}, nil
}
