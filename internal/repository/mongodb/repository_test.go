package mongodb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
	"github.com/mamadbah2/selfcheckout/internal/repository/storetest"
)

// Runs against a replica set, e.g. MONGODB_TEST_URI=mongodb://localhost:27017/?replicaSet=rs0
func TestMongoDBRepository_Contract(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	storetest.Run(t, func(t *testing.T) repository.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbName := "selfcheckout_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
		repo, err := NewMongoDBRepository(ctx, uri, dbName)
		require.NoError(t, err)

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = repo.Drop(ctx)
			_ = repo.Close(ctx)
		})
		return repo
	})
}

func TestUnavailable_TransientLabelSurvives(t *testing.T) {
	cause := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	err := models.Unavailable("adjust stock", cause)

	require.ErrorIs(t, err, models.ErrStorageUnavailable)

	var labeled mongo.LabeledError
	require.True(t, errors.As(err, &labeled))
	assert.True(t, labeled.HasErrorLabel("TransientTransactionError"))

	var cmdErr mongo.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "WriteConflict", cmdErr.Name)
}
