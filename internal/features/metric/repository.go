package metric

import (
	"context"
	"time"

	"go-adrules/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CustomMetricRepository interface {
	Create(ctx context.Context, m *CustomMetric) error
	GetByID(ctx context.Context, id string) (*CustomMetric, error)
	List(ctx context.Context) ([]CustomMetric, error)
	Delete(ctx context.Context, id string) error
}

type CustomMetricRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCustomMetricRepository(db *database.MongodbDB) CustomMetricRepository {
	return &CustomMetricRepositoryImpl{
		collection: db.DB.Collection("custom_metrics"),
	}
}

func (r *CustomMetricRepositoryImpl) Create(ctx context.Context, m *CustomMetric) error {
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now()
	m.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, m)
	return err
}

func (r *CustomMetricRepositoryImpl) GetByID(ctx context.Context, id string) (*CustomMetric, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var m CustomMetric
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &m, nil
}

func (r *CustomMetricRepositoryImpl) List(ctx context.Context) ([]CustomMetric, error) {
	var metrics []CustomMetric

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &metrics); err != nil {
		return nil, err
	}

	if metrics == nil {
		metrics = []CustomMetric{}
	}

	return metrics, nil
}

func (r *CustomMetricRepositoryImpl) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
