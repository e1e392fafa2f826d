package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds the ledger's Pub/Sub handles. Subscribers are only checked
// when the process consumes; the outbox publisher only needs topics.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	consumer  bool
}

// NewClient connects to Pub/Sub. With consumer set, every configured
// subscription must already exist. Extra options are appended after the
// credentials derived from gcp.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, consumer bool, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	opts := append(credentialOptions(gcp), extra...)
	psClient, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg, consumer: consumer}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"gcp_project": projectID, "pubsub_consumer": consumer}), "pubsub client initialized")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping confirms the resources this process depends on exist: subscriptions
// for consumers, topics otherwise.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if c.consumer {
		return c.requireAll(ctx, "subscription", []string{c.cfg.FollowUpSubscription}, func(name string) error {
			_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
			return err
		})
	}
	return c.requireAll(ctx, "topic", []string{c.cfg.ManifestTopic, c.cfg.FollowUpTopic}, func(name string) error {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		return err
	})
}

func (c *Client) requireAll(ctx context.Context, kind string, names []string, lookup func(string) error) error {
	for _, name := range names {
		full := c.resourceName(kind, name)
		if full == "" {
			return fmt.Errorf("pubsub %s name is required", kind)
		}
		err := lookup(full)
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("%s %q does not exist", kind, name)
		default:
			return fmt.Errorf("checking %s %q: %w", kind, name, err)
		}
	}
	return nil
}

// Subscription accepts an id or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if full := c.resourceName("subscription", name); full != "" && c.client != nil {
		return c.client.Subscriber(full)
	}
	return nil
}

func (c *Client) FollowUpSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.FollowUpSubscription)
}

// Publisher accepts an id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if full := c.resourceName("topic", name); full != "" && c.client != nil {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id to projects/<project>/<kind>s/<id>. Full names
// of the right kind pass through.
func (c *Client) resourceName(kind, name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	collection := "/" + kind + "s/"
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, collection):
		return name
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + collection + name
}
