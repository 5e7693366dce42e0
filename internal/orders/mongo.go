package orders

import (
	"context"
	"errors"
	"net"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/resilience/xexec"
	"github.com/omeyang/rxgate/pkg/web/xpage"
)

// sortFieldMap 把 API 排序字段映射到 BSON 字段。
var sortFieldMap = map[string]string{
	"createdAt": "created_at",
	"patientId": "patient_id",
	"status":    "status",
}

// mongoStore 实现 Store，所有调用经由弹性执行器的主存储策略。
type mongoStore struct {
	client   *mongo.Client
	coll     *mongo.Collection
	executor *xexec.Executor
}

// NewMongoStore 创建 MongoDB 订单存储。
func NewMongoStore(client *mongo.Client, database, collection string, executor *xexec.Executor) (Store, error) {
	if client == nil {
		return nil, errors.New("orders: nil mongo client")
	}
	if executor == nil {
		executor = xexec.New()
	}
	return &mongoStore{
		client:   client,
		coll:     client.Database(database).Collection(collection),
		executor: executor,
	}, nil
}

func (s *mongoStore) Insert(ctx context.Context, order *Order) error {
	return s.executor.Do(ctx, xexec.KindPrimaryStore, "orders.insert",
		func(ctx context.Context) error {
			_, err := s.coll.InsertOne(ctx, order)
			return categorize(err)
		})
}

func (s *mongoStore) FindByID(ctx context.Context, id string) (*Order, error) {
	return xexec.Execute(ctx, s.executor, xexec.KindPrimaryStore, "orders.find_by_id",
		func(ctx context.Context) (*Order, error) {
			var order Order
			if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
				return nil, categorize(err)
			}
			return &order, nil
		})
}

func (s *mongoStore) Replace(ctx context.Context, order *Order) error {
	return s.executor.Do(ctx, xexec.KindPrimaryStore, "orders.replace",
		func(ctx context.Context) error {
			result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": order.ID}, order)
			if err != nil {
				return categorize(err)
			}
			if result.MatchedCount == 0 {
				return xfault.New(xfault.KindNotFound, "order "+order.ID+" not found")
			}
			return nil
		})
}

func (s *mongoStore) Delete(ctx context.Context, id string) error {
	return s.executor.Do(ctx, xexec.KindPrimaryStore, "orders.delete",
		func(ctx context.Context) error {
			result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
			if err != nil {
				return categorize(err)
			}
			if result.DeletedCount == 0 {
				return xfault.New(xfault.KindNotFound, "order "+id+" not found")
			}
			return nil
		})
}

func (s *mongoStore) List(ctx context.Context, q ListQuery) (xpage.Result[Order], error) {
	return xexec.Execute(ctx, s.executor, xexec.KindPrimaryStore, "orders.list",
		func(ctx context.Context) (xpage.Result[Order], error) {
			filter := bson.M{}
			if q.PatientID != "" {
				filter["patient_id"] = q.PatientID
			}

			// top+1 探测是否还有下一页，避免为 HasMore 做第二次查询
			findOpts := options.Find().
				SetSort(sortDoc(q.Page)).
				SetSkip(int64(q.Page.Skip)).
				SetLimit(int64(q.Page.Top) + 1)

			cursor, err := s.coll.Find(ctx, filter, findOpts)
			if err != nil {
				return xpage.Result[Order]{}, categorize(err)
			}
			var items []Order
			if err := cursor.All(ctx, &items); err != nil {
				return xpage.Result[Order]{}, categorize(err)
			}

			result := xpage.Result[Order]{Items: items}
			if len(items) > q.Page.Top {
				result.Items = items[:q.Page.Top]
				result.HasMore = true
			}

			if q.Page.Count {
				total, err := s.coll.CountDocuments(ctx, filter)
				if err != nil {
					return xpage.Result[Order]{}, categorize(err)
				}
				result.Total = total
			}
			return result, nil
		})
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.executor.Do(ctx, xexec.KindPrimaryStore, "orders.ping",
		func(ctx context.Context) error {
			return categorize(s.client.Ping(ctx, readpref.Primary()))
		})
}

// sortDoc 构造排序文档。协议接受多字段 $orderby，这里只应用第一项；
// 无排序时默认按创建时间倒序。
func sortDoc(p xpage.Page) bson.D {
	if len(p.OrderBy) > 0 {
		if field, ok := sortFieldMap[p.OrderBy[0].Field]; ok {
			dir := 1
			if p.OrderBy[0].Desc {
				dir = -1
			}
			return bson.D{{Key: field, Value: dir}}
		}
	}
	return bson.D{{Key: "created_at", Value: -1}}
}

// categorize 把驱动错误归入失败类别。
// 业务性结果直接定性；基础设施故障交给执行器的瞬时分类表。
func categorize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return xfault.New(xfault.KindNotFound, "order not found")
	case mongo.IsDuplicateKeyError(err):
		return xfault.New(xfault.KindConflict, "order already exists")
	case mongo.IsTimeout(err):
		return xexec.Categorize("execution-timeout", err)
	case isNetworkError(err):
		return xexec.Categorize("connection", err)
	default:
		return err
	}
}

func isNetworkError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
