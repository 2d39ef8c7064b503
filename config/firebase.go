package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// InitFirebase initializes the Firebase Admin SDK. It returns a nil app when
// no credentials are configured so push notifications are simply skipped.
func InitFirebase(ctx context.Context, cfg *Config) (*firebase.App, error) {
	var opt option.ClientOption
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		log.Printf("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("decode firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	case cfg.GoogleCredentialsFile != "":
		log.Printf("Using Firebase credentials file: %s", cfg.GoogleCredentialsFile)
		opt = option.WithCredentialsFile(cfg.GoogleCredentialsFile)
	default:
		log.Println("Warning: Firebase credentials not configured, push notifications disabled")
		return nil, nil
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	return app, nil
}
