package rule

import (
	"context"
	"time"

	"go-adrules/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id string) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)
	GetActive(ctx context.Context) ([]Rule, error)
	Update(ctx context.Context, r *Rule) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateRunMeta(ctx context.Context, id primitive.ObjectID, runAt time.Time, atDate string) error
	Delete(ctx context.Context, id string) error
}

type RuleRepositoryImpl struct {
	collection *mongo.Collection
}

func NewRuleRepository(db *database.MongodbDB) RuleRepository {
	return &RuleRepositoryImpl{
		collection: db.DB.Collection("rules"),
	}
}

func (r *RuleRepositoryImpl) Create(ctx context.Context, rule *Rule) error {
	rule.ID = primitive.NewObjectID()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, rule)
	return err
}

func (r *RuleRepositoryImpl) GetByID(ctx context.Context, id string) (*Rule, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var rule Rule
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&rule)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &rule, nil
}

func (r *RuleRepositoryImpl) List(ctx context.Context) ([]Rule, error) {
	return r.find(ctx, bson.M{})
}

func (r *RuleRepositoryImpl) GetActive(ctx context.Context) ([]Rule, error) {
	return r.find(ctx, bson.M{"active": true})
}

func (r *RuleRepositoryImpl) find(ctx context.Context, filter bson.M) ([]Rule, error) {
	var rules []Rule

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &rules); err != nil {
		return nil, err
	}

	if rules == nil {
		rules = []Rule{}
	}

	return rules, nil
}

func (r *RuleRepositoryImpl) Update(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": rule.ID},
		bson.M{"$set": bson.M{
			"name":           rule.Name,
			"active":         rule.Active,
			"account_ids":    rule.AccountIDs,
			"logic":          rule.Logic,
			"campaign_scope": rule.CampaignScope,
			"date_preset":    rule.DatePreset,
			"schedule":       rule.Schedule,
			"conditions":     rule.Conditions,
			"action":         rule.Action,
			"updated_at":     rule.UpdatedAt,
		}},
	)
	return err
}

func (r *RuleRepositoryImpl) SetActive(ctx context.Context, id string, active bool) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}},
	)
	return err
}

// UpdateRunMeta stamps run bookkeeping after an execution. It is written
// even when every account in the run failed; "ran" means "attempted".
func (r *RuleRepositoryImpl) UpdateRunMeta(ctx context.Context, id primitive.ObjectID, runAt time.Time, atDate string) error {
	set := bson.M{
		"last_run":              runAt,
		"meta.last_auto_run_at": runAt,
	}
	if atDate != "" {
		set["meta.last_at_run_date"] = atDate
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *RuleRepositoryImpl) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

type RunLogRepository interface {
	Create(ctx context.Context, log *RunLog) error
	ListByRule(ctx context.Context, ruleID string, limit int) ([]RunLog, error)
	ListRecent(ctx context.Context, limit int) ([]RunLog, error)
}

type RunLogRepositoryImpl struct {
	collection *mongo.Collection
}

func NewRunLogRepository(db *database.MongodbDB) RunLogRepository {
	return &RunLogRepositoryImpl{
		collection: db.DB.Collection("rule_run_logs"),
	}
}

func (r *RunLogRepositoryImpl) Create(ctx context.Context, log *RunLog) error {
	log.ID = primitive.NewObjectID()
	log.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *RunLogRepositoryImpl) ListByRule(ctx context.Context, ruleID string, limit int) ([]RunLog, error) {
	objectID, err := primitive.ObjectIDFromHex(ruleID)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"rule_id": objectID}, limit)
}

func (r *RunLogRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]RunLog, error) {
	return r.find(ctx, bson.M{}, limit)
}

func (r *RunLogRepositoryImpl) find(ctx context.Context, filter bson.M, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []RunLog

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	if logs == nil {
		logs = []RunLog{}
	}

	return logs, nil
}
