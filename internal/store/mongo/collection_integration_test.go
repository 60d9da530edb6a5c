//go:build integration
// +build integration

package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	"example.com/healthsync/internal/domain"
)

func TestCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Open(ctx, uri, "HealthDB")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	activities := db.Collection(domain.CollectionActivities)
	activity := domain.Activity{
		ID:             15020304050,
		StartTimeLocal: "2024-03-31 23:59:00",
		Payload:        []byte(`{"activityId":15020304050,"startTimeLocal":"2024-03-31 23:59:00"}`),
	}

	exists, err := activities.Exists(ctx, activity.Document().Key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, activities.Insert(ctx, activity.Document()))

	exists, err = activities.Exists(ctx, activity.Document().Key)
	require.NoError(t, err)
	require.True(t, exists)

	var stored bson.M
	require.NoError(t, db.db.Collection(domain.CollectionActivities).FindOne(ctx, bson.D{{Key: "activityId", Value: int64(15020304050)}}).Decode(&stored))
	require.Equal(t, "2024-03-31 23:59:00", stored["startTimeLocal"])
}
