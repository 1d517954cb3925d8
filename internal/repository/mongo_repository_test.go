package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestDB(t *testing.T) (*mongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db).(*mongoRepository)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func finishedCart() domain.TeamCart {
	cart := domain.NewTeamCart("cart-1", "rest-1", domain.Member{UserID: "host", Name: "Host"}, nil, time.Now().Add(time.Hour)).
		WithItem(domain.Item{ItemID: "i1", Quantity: 2, UnitBasePrice: decimal.RequireFromString("4.25")}).
		Recalculated()
	cart.Status = domain.StatusLocked
	cart.Version = 4
	return cart
}

func TestGetSnapshot_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetSnapshot(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Nil(t, cart)
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, finishedCart()))

	got, err := repo.GetSnapshot(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, domain.StatusLocked, got.Status)
	assert.True(t, decimal.RequireFromString("8.50").Equal(got.Subtotal))

	var record snapshotRecord
	require.NoError(t, repo.collection.FindOne(ctx, bson.M{"_id": "cart-1"}).Decode(&record))
	assert.Equal(t, "rest-1", record.RestaurantID)
	assert.Equal(t, "8.5", record.Total.String())
	assert.Equal(t, 1, record.MemberCount)
}

func TestSaveSnapshot_IsIdempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := finishedCart()
	require.NoError(t, repo.SaveSnapshot(ctx, cart))
	cart.Version = 5
	require.NoError(t, repo.SaveSnapshot(ctx, cart))

	count, err := repo.collection.CountDocuments(ctx, bson.M{"_id": "cart-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.GetSnapshot(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
}
