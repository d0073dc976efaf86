package users

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	// MongoStore keeps users in the "users" collection of the database
	// named by the connection string.
	MongoStore struct {
		client *mongo.Client
		coll   *mongo.Collection
	}

	// mongoUser is the document layout of the users collection.
	//
	// Email and Password are only read: the first bcrypt deployment wrote
	// them instead of username and hash. Saving a record rewrites it with
	// the current field names.
	mongoUser struct {
		ID       primitive.ObjectID `bson:"_id"`
		Username string             `bson:"username"`
		Hash     *string            `bson:"hash,omitempty"`
		Salt     *string            `bson:"salt,omitempty"`
		GoogleID *string            `bson:"googleId,omitempty"`
		Secret   *string            `bson:"secret,omitempty"`

		Email    *string `bson:"email,omitempty"`
		Password *string `bson:"password,omitempty"`
	}
)

const (
	defaultMongoDatabase = "userDB"
	usersCollection      = "users"
)

// OpenMongo connects to the given mongodb:// (or mongodb+srv://) uri.
// When the uri has no database path, userDB is used.
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	dbname, err := mongoDatabaseName(uri)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongodb, cause %w", err)
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping mongodb, cause %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(dbname).Collection(usersCollection),
	}, nil
}

func mongoDatabaseName(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("unable to parse mongodb uri, cause %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return defaultMongoDatabase, nil
	}
	return name, nil
}

func (m *MongoStore) FindByUsername(ctx context.Context, name string) (*User, error) {
	return m.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": name},
		bson.M{"email": name},
	}})
}

func (m *MongoStore) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, InvalidID{ID: id}
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *MongoStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	return m.findOne(ctx, bson.M{"googleId": externalID})
}

func (m *MongoStore) Create(ctx context.Context, fields User) (*User, error) {
	doc := toMongo(fields)
	doc.ID = primitive.NewObjectID()
	_, err := m.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("unable to create user %v, cause %w", fields.Username, err)
	}
	u := doc.user()
	return &u, nil
}

func (m *MongoStore) Save(ctx context.Context, u *User) error {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return InvalidID{ID: u.ID}
	}
	doc := toMongo(*u)
	doc.ID = oid
	res, err := m.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return fmt.Errorf("unable to save user %v, cause %w", u.ID, err)
	} else if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) FindAllWithSecret(ctx context.Context) ([]User, error) {
	cur, err := m.coll.Find(ctx, bson.M{"secret": bson.M{"$ne": nil}})
	if err != nil {
		return nil, fmt.Errorf("unable to list secrets, cause %w", err)
	}
	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("unable to list secrets, cause %w", err)
	}
	out := make([]User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.user())
	}
	return out, nil
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc mongoUser
	err := m.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to lookup user, cause %w", err)
	}
	u := doc.user()
	return &u, nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

func toMongo(u User) mongoUser {
	return mongoUser{
		Username: u.Username,
		Hash:     u.Hash,
		Salt:     u.Salt,
		GoogleID: u.ExternalID,
		Secret:   u.Secret,
	}
}

func (d mongoUser) user() User {
	u := User{
		ID:         d.ID.Hex(),
		Username:   d.Username,
		Hash:       d.Hash,
		Salt:       d.Salt,
		ExternalID: d.GoogleID,
		Secret:     d.Secret,
	}
	if u.Username == "" && d.Email != nil {
		u.Username = *d.Email
	}
	if u.Hash == nil && d.Password != nil {
		u.Hash = d.Password
	}
	return u
}
