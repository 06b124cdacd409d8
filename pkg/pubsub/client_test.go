package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConfiguredSkipsBlank(t *testing.T) {
	assert.Equal(t, []string{"cs-notifications-sub"}, configured(" cs-notifications-sub ", "", "  "))
	assert.Empty(t, configured())
}

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "carestaff-dev"}

	assert.Equal(t, "projects/carestaff-dev/subscriptions/notif", c.resourceName(kindSubscription, "notif"))
	assert.Equal(t, "projects/carestaff-dev/topics/cs-decision-events", c.resourceName(kindTopic, " cs-decision-events "))
	assert.Equal(t, "projects/other/subscriptions/x", c.resourceName(kindSubscription, "projects/other/subscriptions/x"))
	assert.Equal(t, "projects/carestaff-dev/topics/projects/other/subscriptions/x",
		c.resourceName(kindTopic, "projects/other/subscriptions/x"), "a subscription path is not a topic path")
	assert.Empty(t, c.resourceName(kindTopic, " "))
	assert.Empty(t, (&Client{}).resourceName(kindTopic, "cs-decision-events"))
}

func TestDescribeLookup(t *testing.T) {
	assert.NoError(t, describeLookup("topic", "cs-decision-events", nil))
	assert.EqualError(t,
		describeLookup("topic", "cs-decision-events", status.Error(codes.NotFound, "gone")),
		`topic "cs-decision-events" does not exist`)
	assert.ErrorContains(t,
		describeLookup("subscription", "notif", errors.New("deadline exceeded")),
		`checking subscription "notif": deadline exceeded`)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("cs-decision-events"))
	assert.Nil(t, c.Subscription("notif"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
