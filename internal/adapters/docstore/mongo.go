package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/metrics"
)

// Mongo реализует domain.DocStore поверх одной базы Mongo. Каждая
// операция — одиночный атомарный вызов, как и требует порт.
type Mongo struct {
	db *mongo.Database
}

var _ domain.DocStore = (*Mongo)(nil)

// NewMongo создаёт адаптер хранилища.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (s *Mongo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Get читает документ в out.
func (s *Mongo) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		metrics.ObserveStoreOp("mongo", "get", collection, start, nil)
		return false, nil
	}
	metrics.ObserveStoreOp("mongo", "get", collection, start, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set пишет документ. merge=true обновляет только присланные поля.
func (s *Mongo) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	var err error
	if merge {
		fields, mErr := toBSONMap(doc)
		if mErr != nil {
			return mErr
		}
		delete(fields, "_id")
		_, err = s.db.Collection(collection).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": fields},
			options.Update().SetUpsert(true))
	} else {
		fields, mErr := toBSONMap(doc)
		if mErr != nil {
			return mErr
		}
		fields["_id"] = id
		_, err = s.db.Collection(collection).ReplaceOne(ctx,
			bson.M{"_id": id},
			fields,
			options.Replace().SetUpsert(true))
	}
	metrics.ObserveStoreOp("mongo", "set", collection, start, err)
	return err
}

// Increment атомарно сдвигает числовое поле, создавая документ при
// необходимости.
func (s *Mongo) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: delta}},
		options.Update().SetUpsert(true))
	metrics.ObserveStoreOp("mongo", "increment", collection, start, err)
	return err
}

// Append атомарно дописывает элемент в массив. Дубликаты сохраняются.
func (s *Mongo) Append(ctx context.Context, collection, id, field string, element any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{field: element}},
		options.Update().SetUpsert(true))
	metrics.ObserveStoreOp("mongo", "append", collection, start, err)
	return err
}

// List возвращает документы в естественном порядке коллекции.
func (s *Mongo) List(ctx context.Context, collection string, filter map[string]any, out any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	query := bson.M{}
	for field, value := range filter {
		query[field] = value
	}
	start := time.Now()
	cursor, err := s.db.Collection(collection).Find(ctx, query)
	if err != nil {
		metrics.ObserveStoreOp("mongo", "list", collection, start, err)
		return err
	}
	err = cursor.All(ctx, out)
	metrics.ObserveStoreOp("mongo", "list", collection, start, err)
	return err
}

func toBSONMap(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
