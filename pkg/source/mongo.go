package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/automation/pkg/errors"
)

// MongoScheme is the URL scheme served by Mongo:
// mongo://<database>/<collection>/<id>.
const MongoScheme = "mongo"

// Mongo fetches backing documents from MongoDB by _id and returns them as
// relaxed extended JSON.
type Mongo struct {
	client *mongo.Client
	logger *log.Logger
}

// NewMongo connects to the server at uri and pings it.
func NewMongo(ctx context.Context, uri string, logger *log.Logger) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}
	return NewMongoFromClient(client, logger), nil
}

// NewMongoFromClient wraps a connected client.
func NewMongoFromClient(client *mongo.Client, logger *log.Logger) *Mongo {
	if logger == nil {
		logger = log.Default()
	}
	return &Mongo{client: client, logger: logger}
}

// MongoRef addresses one document.
type MongoRef struct {
	Database   string
	Collection string
	ID         string
}

// ParseMongoURL splits mongo://<database>/<collection>/<id>.
func ParseMongoURL(rawURL string) (MongoRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return MongoRef{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %q", rawURL)
	}
	if u.Scheme != MongoScheme {
		return MongoRef{}, errors.New(errors.ErrCodeInvalidInput, "not a %s url: %q", MongoScheme, rawURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return MongoRef{}, errors.New(errors.ErrCodeInvalidInput, "want %s://<database>/<collection>/<id>, got %q", MongoScheme, rawURL)
	}
	return MongoRef{Database: u.Host, Collection: parts[0], ID: parts[1]}, nil
}

// filter matches the document by ObjectID when the id is one, by string
// otherwise.
func (r MongoRef) filter() bson.D {
	if oid, err := primitive.ObjectIDFromHex(r.ID); err == nil {
		return bson.D{{Key: "_id", Value: oid}}
	}
	return bson.D{{Key: "_id", Value: r.ID}}
}

// Fetch loads the document at rawURL.
func (m *Mongo) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ref, err := ParseMongoURL(rawURL)
	if err != nil {
		return nil, err
	}
	coll := m.client.Database(ref.Database).Collection(ref.Collection)
	raw, err := coll.FindOne(ctx, ref.filter()).Raw()
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeNotFound, "no document %s in %s.%s", ref.ID, ref.Database, ref.Collection)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "find %s", rawURL)
	}
	out, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", rawURL)
	}
	m.logger.Debug("mongo fetch", "db", ref.Database, "collection", ref.Collection, "id", ref.ID, "bytes", len(out))
	return out, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
