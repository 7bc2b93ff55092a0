package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/logger"
)

func TestNewMongo_EmptyURI(t *testing.T) {
	_, err := NewMongo(context.Background(), config.Mongo{}, logger.Nop())
	assert.ErrorIs(t, err, ErrEmptyMongoURI)
}

func TestNewMongo_InvalidURI(t *testing.T) {
	_, err := NewMongo(context.Background(), config.Mongo{URI: "http://not-mongo"}, logger.Nop())
	assert.Error(t, err)
}

// TestNewMongo_IsLazy verifies that creating the provider needs no server;
// only Ping reaches out.
func TestNewMongo_IsLazy(t *testing.T) {
	m, err := NewMongo(context.Background(), config.Mongo{URI: "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200"}, logger.Nop())
	require.NoError(t, err)
	defer m.Close(context.Background())

	assert.Equal(t, "mongo", m.Name())
	assert.Equal(t, DefaultMongoDatabase, m.Database().Name())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, m.Ping(ctx))
}
