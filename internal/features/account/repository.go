package account

import (
	"context"
	"time"

	"go-adrules/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AccountRepository interface {
	Create(ctx context.Context, a *AdAccount) error
	GetByID(ctx context.Context, id string) (*AdAccount, error)
	GetByAccountID(ctx context.Context, accountID string) (*AdAccount, error)
	List(ctx context.Context) ([]AdAccount, error)
	Update(ctx context.Context, a *AdAccount) error
	Delete(ctx context.Context, id string) error
}

type AccountRepositoryImpl struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *database.MongodbDB) AccountRepository {
	return &AccountRepositoryImpl{
		collection: db.DB.Collection("ad_accounts"),
	}
}

func (r *AccountRepositoryImpl) Create(ctx context.Context, a *AdAccount) error {
	a.ID = primitive.NewObjectID()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, a)
	return err
}

func (r *AccountRepositoryImpl) GetByID(ctx context.Context, id string) (*AdAccount, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *AccountRepositoryImpl) GetByAccountID(ctx context.Context, accountID string) (*AdAccount, error) {
	return r.findOne(ctx, bson.M{"account_id": accountID})
}

func (r *AccountRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*AdAccount, error) {
	var a AdAccount
	err := r.collection.FindOne(ctx, filter).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepositoryImpl) List(ctx context.Context) ([]AdAccount, error) {
	var accounts []AdAccount

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}

	if accounts == nil {
		accounts = []AdAccount{}
	}

	return accounts, nil
}

func (r *AccountRepositoryImpl) Update(ctx context.Context, a *AdAccount) error {
	a.UpdatedAt = time.Now()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{
			"name":       a.Name,
			"token":      a.Token,
			"updated_at": a.UpdatedAt,
		}},
	)
	return err
}

func (r *AccountRepositoryImpl) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
