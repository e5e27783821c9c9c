package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/model"
)

type mongoProduct struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Price       int64              `bson:"price"`
	Description string             `bson:"description"`
	ImageURL    string             `bson:"image_url"`
	Available   bool               `bson:"available"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d mongoProduct) product() model.Product {
	return model.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Price:       d.Price,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Available:   d.Available,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// MongoStore keeps products as documents in a single collection. MarkSold
// relies on single-document update atomicity: the filter includes
// available=true, so only one concurrent update can match.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongo")
	}
	coll := client.Database(database).Collection("products")
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: newestFirst}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "create products index")
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateProduct(ctx context.Context, np model.NewProduct) (model.Product, error) {
	if err := np.Validate(); err != nil {
		return model.Product{}, err
	}
	doc := mongoProduct{
		ID:          primitive.NewObjectID(),
		Name:        np.Name,
		Price:       np.Price,
		Description: np.Description,
		ImageURL:    np.ImageURL,
		Available:   true,
		// BSON dates carry millisecond precision
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return model.Product{}, errors.Wrap(err, "insert product")
	}
	return doc.product(), nil
}

func (s *MongoStore) GetProduct(ctx context.Context, id string) (model.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Product{}, model.ErrNotFound
	}
	var doc mongoProduct
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Product{}, model.ErrNotFound
	}
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "find product %s", id)
	}
	return doc.product(), nil
}

func (s *MongoStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	var docs []mongoProduct
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.product())
	}
	return out, nil
}

func (s *MongoStore) MarkSold(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "available": true},
		bson.M{"$set": bson.M{"available": false}},
	)
	if err != nil {
		return false, errors.Wrapf(err, "mark product %s sold", id)
	}
	return res.ModifiedCount == 1, nil
}
