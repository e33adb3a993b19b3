package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex

	newPubSubClient = pubsub.NewClient
)

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// getPubSubClient returns the shared client, retrying with backoff until ctx
// is done. PUBSUB_CREDENTIALS_JSON overrides Application Default Credentials.
// The mutex only guards the shared client; dialing and backoff run unlocked.
func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	if c := sharedPubSubClient(); c != nil {
		return c, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	for attempt := 1; ; attempt++ {
		c, err := newPubSubClient(ctx, projectID, opts...)
		if err == nil {
			pubsubClientMu.Lock()
			defer pubsubClientMu.Unlock()
			if pubsubClient != nil {
				// another caller won the race
				c.Close()
				return pubsubClient, nil
			}
			pubsubClient = c
			logg.WithFields(logrus.Fields{"project_id": projectID, "attempt": attempt}).Info("pubsub client ready")
			return c, nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		logg.WithFields(logrus.Fields{"project_id": projectID, "attempt": attempt}).
			Warn(fmt.Sprintf("failed to init pubsub client: %v; retrying in %s", err, sleep))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("init pubsub client: %w", err)
		case <-time.After(sleep):
		}
		if c := sharedPubSubClient(); c != nil {
			return c, nil
		}
	}
}

func sharedPubSubClient() *pubsub.Client {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	return pubsubClient
}

// PublishEvent publishes obj as JSON and returns the server-assigned message ID.
func PublishEvent(ctx context.Context, topicName string, attributes map[string]string, obj interface{}) (string, error) {
	if topicName == "" {
		return "", errors.New("topicName is required")
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	return result.Get(ctx)
}
