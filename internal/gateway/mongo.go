package gateway

import (
	"context"
	"errors"

	"edulink_backend/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoGateway 基于 MongoDB 的远端文档库实现，
// 订阅用 change stream 驱动：集合每次变更重新执行查询并推送全量快照
type MongoGateway struct {
	db *mongo.Database
}

func NewMongoGateway(db *mongo.Database) *MongoGateway {
	return &MongoGateway{db: db}
}

func (g *MongoGateway) Get(ctx context.Context, collection, key string) (bson.Raw, error) {
	res := g.db.Collection(collection).FindOne(ctx, bson.M{"_id": key})
	raw, err := res.Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, wrap("get "+collection, err)
	}
	return raw, nil
}

func (g *MongoGateway) Set(ctx context.Context, collection, key string, doc interface{}) error {
	opts := options.Replace().SetUpsert(true)
	_, err := g.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc, opts)
	return wrap("set "+collection, err)
}

func (g *MongoGateway) Update(ctx context.Context, collection, key string, fields map[string]interface{}) error {
	res, err := g.db.Collection(collection).UpdateByID(ctx, key, bson.M{"$set": fields})
	if err != nil {
		return wrap("update "+collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *MongoGateway) Append(ctx context.Context, collection, key, field string, value interface{}) error {
	res, err := g.db.Collection(collection).UpdateByID(ctx, key, bson.M{"$addToSet": bson.M{field: value}})
	if err != nil {
		return wrap("append "+collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *MongoGateway) Delete(ctx context.Context, collection, key string) error {
	res, err := g.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return wrap("delete "+collection, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *MongoGateway) Query(ctx context.Context, collection string, filter Filter, orderBy string) ([]bson.Raw, error) {
	opts := options.Find()
	if orderBy != "" {
		opts.SetSort(bson.D{{Key: orderBy, Value: 1}})
	}

	mf := bson.M{}
	for k, v := range filter {
		mf[k] = v
	}

	cur, err := g.db.Collection(collection).Find(ctx, mf, opts)
	if err != nil {
		return nil, wrap("query "+collection, err)
	}
	defer cur.Close(ctx)

	var docs []bson.Raw
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		docs = append(docs, raw)
	}
	if err := cur.Err(); err != nil {
		return nil, wrap("query "+collection, err)
	}
	return docs, nil
}

func (g *MongoGateway) Subscribe(ctx context.Context, collection string, filter Filter, orderBy string) (<-chan Snapshot, error) {
	stream, err := g.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, wrap("subscribe "+collection, err)
	}

	ch := make(chan Snapshot, 8)

	// 首个快照为当前查询结果
	docs, err := g.Query(ctx, collection, filter, orderBy)
	if err != nil {
		stream.Close(ctx)
		return nil, err
	}
	ch <- Snapshot{Docs: docs}

	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			docs, err := g.Query(ctx, collection, filter, orderBy)
			if err != nil {
				ch <- Snapshot{Err: err}
				continue
			}
			select {
			case ch <- Snapshot{Docs: docs}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			logger.Log.Error("change stream closed", zap.String("collection", collection), zap.Error(err))
			ch <- Snapshot{Err: wrap("subscribe "+collection, err)}
		}
	}()

	return ch, nil
}
