package pubsub

import (
	"context"
	"testing"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/angelmondragon/branchledger/pkg/config"
)

const testProject = "ledger-test"

var testPubSub = config.PubSubConfig{
	ManifestTopic:        "manifest-events",
	FollowUpTopic:        "followup-events",
	FollowUpSubscription: "followup-worker",
}

func fakeServerOptions(t *testing.T) []option.ClientOption {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	return []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

func TestNewClientRequiresTopics(t *testing.T) {
	ctx := context.Background()
	opts := fakeServerOptions(t)

	_, err := NewClient(ctx, config.GCPConfig{ProjectID: testProject}, testPubSub, false, nil, opts...)
	require.ErrorContains(t, err, `topic "manifest-events" does not exist`)

	admin, err := NewClient(ctx, config.GCPConfig{ProjectID: testProject}, config.PubSubConfig{}, false, nil, opts...)
	require.Error(t, err, "blank topic names are rejected")
	assert.Nil(t, admin)
}

func TestClientAgainstFakeServer(t *testing.T) {
	ctx := context.Background()
	opts := fakeServerOptions(t)

	seed := &Client{projectID: testProject}
	raw, err := gpubsub.NewClient(ctx, testProject, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	for _, topic := range []string{testPubSub.ManifestTopic, testPubSub.FollowUpTopic} {
		_, err := raw.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: seed.resourceName("topic", topic)})
		require.NoError(t, err)
	}

	publisher, err := NewClient(ctx, config.GCPConfig{ProjectID: testProject}, testPubSub, false, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })
	assert.NotNil(t, publisher.Publisher(testPubSub.FollowUpTopic))

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: testProject}, testPubSub, true, nil, opts...)
	require.ErrorContains(t, err, `subscription "followup-worker" does not exist`)

	_, err = raw.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  seed.resourceName("subscription", testPubSub.FollowUpSubscription),
		Topic: seed.resourceName("topic", testPubSub.FollowUpTopic),
	})
	require.NoError(t, err)

	consumer, err := NewClient(ctx, config.GCPConfig{ProjectID: testProject}, testPubSub, true, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = consumer.Close() })
	assert.NotNil(t, consumer.FollowUpSubscription())
	require.NoError(t, consumer.Ping(ctx))
}

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: testProject}
	assert.Equal(t, "projects/ledger-test/topics/manifest-events", c.resourceName("topic", " manifest-events "))
	assert.Equal(t, "projects/other/topics/x", c.resourceName("topic", "projects/other/topics/x"))
	assert.Equal(t, "projects/ledger-test/subscriptions/followup-worker", c.resourceName("subscription", "followup-worker"))
	assert.Empty(t, c.resourceName("topic", ""))
	assert.Empty(t, (&Client{}).resourceName("topic", "x"))

	var nilClient *Client
	assert.Empty(t, nilClient.resourceName("topic", "x"))
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, nilClient.Close())
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, testPubSub, false, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestCredentialOptions(t *testing.T) {
	assert.Len(t, credentialOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	assert.Len(t, credentialOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}), 1)
	assert.Empty(t, credentialOptions(config.GCPConfig{}))
}
