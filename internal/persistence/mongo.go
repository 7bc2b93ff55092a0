package persistence

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/logger"
)

// DefaultMongoDatabase is used when the configuration names no database.
const DefaultMongoDatabase = "miniservice"

// Mongo is the document-store Provider. The driver connects lazily: creating
// a Mongo performs no I/O, the first operation or Ping does.
type Mongo struct {
	client   *mongo.Client
	database string
	logger   *logger.Logger
}

func NewMongo(ctx context.Context, cfg config.Mongo, log *logger.Logger) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, ErrEmptyMongoURI
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		log.Err(err).Str("func", "NewMongo").Msg("error creating mongo client")
		return nil, fmt.Errorf("error creating mongo client: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = DefaultMongoDatabase
	}

	log.Debug().Str("func", "NewMongo").Str("database", database).Msg("mongo client created")

	return &Mongo{client: client, database: database, logger: log}, nil
}

func (m *Mongo) Name() string {
	return "mongo"
}

// Database returns the configured database handle.
func (m *Mongo) Database() *mongo.Database {
	return m.client.Database(m.database)
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
