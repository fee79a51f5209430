package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omegaop/backoffice/internal/models"
)

// DocumentID is the fixed id of the single application-state row.
const DocumentID = "omega-app-state"

// stateCollection must be provisioned before the application can enter; a
// missing collection is reported as ErrSchemaMissing, never auto-created on
// load.
const stateCollection = "app_state"

var (
	// ErrNotFound means the collection exists but holds no state document yet.
	ErrNotFound = errors.New("state document not found")
	// ErrSchemaMissing means the backing collection has not been provisioned.
	ErrSchemaMissing = errors.New("state collection missing, provision the schema first")
)

// Store persists the single AppState document in MongoDB and exposes a
// change-stream subscription for realtime notifications.
type Store struct {
	db     *mongo.Database
	states *mongo.Collection
	log    *logrus.Entry
}

// NewStore creates a Store over the given database.
func NewStore(db *mongo.Database, log *logrus.Logger) *Store {
	return &Store{
		db:     db,
		states: db.Collection(stateCollection),
		log:    log.WithField("component", "store"),
	}
}

// Provision creates the state collection and its index. Run once, out of
// band (init mode), before the application serves traffic.
func (s *Store) Provision(ctx context.Context) error {
	if err := s.db.CreateCollection(ctx, stateCollection); err != nil {
		var cmdErr mongo.CommandError
		// NamespaceExists: provisioning twice is fine.
		if !(errors.As(err, &cmdErr) && cmdErr.Code == 48) {
			return fmt.Errorf("create state collection: %w", err)
		}
	}

	_, err := s.states.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create state index: %w", err)
	}
	s.log.Info("state collection provisioned")
	return nil
}

// schemaPresent reports whether the state collection exists.
func (s *Store) schemaPresent(ctx context.Context) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": stateCollection})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// Load fetches the state document. It distinguishes a missing schema
// (ErrSchemaMissing) from a provisioned-but-empty store (ErrNotFound).
func (s *Store) Load(ctx context.Context) (*models.StateDocument, error) {
	present, err := s.schemaPresent(ctx)
	if err != nil {
		return nil, fmt.Errorf("check schema: %w", err)
	}
	if !present {
		return nil, ErrSchemaMissing
	}

	var doc models.StateDocument
	err = s.states.FindOne(ctx, bson.M{"_id": DocumentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return &doc, nil
}

// Save upserts the full state document under the fixed id.
func (s *Store) Save(ctx context.Context, state models.AppState) error {
	doc := models.StateDocument{
		ID:        DocumentID,
		Data:      state,
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.states.ReplaceOne(ctx, bson.M{"_id": DocumentID}, doc, opts)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Watch opens a change stream on the state document and delivers each new
// snapshot on the returned channel. The channel closes when ctx is cancelled
// or the stream ends.
func (s *Store) Watch(ctx context.Context) (<-chan models.AppState, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": DocumentID}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := s.states.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("watch state: %w", err)
	}

	updates := make(chan models.AppState, 8)
	go func() {
		defer close(updates)
		defer cs.Close(context.Background())

		for cs.Next(ctx) {
			var event struct {
				FullDocument models.StateDocument `bson:"fullDocument"`
			}
			if err := cs.Decode(&event); err != nil {
				s.log.WithError(err).Warn("failed to decode change event")
				continue
			}
			select {
			case updates <- event.FullDocument.Data:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("change stream ended")
		}
	}()
	return updates, nil
}
