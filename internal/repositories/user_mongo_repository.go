package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"userhub/internal/models"
)

// MongoUserRepository stores users in the remote document store's `users`
// collection.
type MongoUserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoUserRepository creates a repository over the given database.
func NewMongoUserRepository(db *mongo.Database, logger *zap.Logger) *MongoUserRepository {
	return &MongoUserRepository{
		collection: db.Collection("users"),
		logger:     logger,
	}
}

// userDocument is the collection-side shape of a user. The _id stays an
// ObjectID inside the store and is exposed as its hex string.
type userDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Age         string             `bson:"age"`
	DeviceToken string             `bson:"device_token,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d userDocument) toModel() models.User {
	return models.User{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Email:       d.Email,
		Age:         d.Age,
		DeviceToken: d.DeviceToken,
		CreatedAt:   d.CreatedAt,
	}
}

// List retrieves all users ordered by creation time, newest first. This is
// the same ordering the live query delivers.
func (r *MongoUserRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

// GetByID retrieves a single user by its hex ID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
	}

	var doc userDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}

	user := doc.toModel()
	return &user, nil
}

// Create inserts a new user. The store assigns the id; the creation timestamp
// is stamped here, on the store side of the form.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		Name:        user.Name,
		Email:       user.Email,
		Age:         user.Age,
		DeviceToken: user.DeviceToken,
		CreatedAt:   time.Now().UTC(),
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	user.CreatedAt = doc.CreatedAt
	return nil
}

// Update patches the mutable fields of an existing user.
func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return fmt.Errorf("user with ID %s: %w", user.ID, ErrUserNotFound)
	}

	update := bson.M{"$set": bson.M{
		"name":         user.Name,
		"email":        user.Email,
		"age":          user.Age,
		"device_token": user.DeviceToken,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user with ID %s: %w", user.ID, ErrUserNotFound)
	}
	return nil
}

// Delete removes a user by its hex ID.
func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
	}
	return nil
}

// Remote reports true: the document store is authoritative.
func (r *MongoUserRepository) Remote() bool {
	return true
}

// ChangeEvent is one entry from the collection's change stream.
type ChangeEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  userDocument `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

// User returns the user carried by the event. Delete events only carry the
// document key, so everything but the ID is empty for them.
func (e ChangeEvent) User() models.User {
	if e.OperationType == "delete" {
		return models.User{ID: e.DocumentKey.ID.Hex()}
	}
	u := e.FullDocument.toModel()
	if u.ID == primitive.NilObjectID.Hex() {
		u.ID = e.DocumentKey.ID.Hex()
	}
	return u
}

// Watch opens a change stream over the users collection, delivering every
// create, update and delete with the full post-image where one exists.
func (r *MongoUserRepository) Watch(ctx context.Context) (*mongo.ChangeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := r.collection.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to watch users collection: %w", err)
	}
	r.logger.Info("watching users collection for writes")
	return stream, nil
}
