package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryGateway 进程内实现，语义与 Mongo 实现一致。
// 用于无外部依赖的部署（gateway.type: memory）和测试替身
type MemoryGateway struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
	subs        map[string][]*memorySub
}

type memorySub struct {
	filter  Filter
	orderBy string
	ch      chan Snapshot
	done    <-chan struct{}
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		collections: make(map[string]map[string]bson.Raw),
		subs:        make(map[string][]*memorySub),
	}
}

// coll 懒建集合，会写 collections 表，只允许在写锁内调用；
// 读路径直接索引 g.collections，缺失的集合按空集合处理
func (g *MemoryGateway) coll(name string) map[string]bson.Raw {
	c, ok := g.collections[name]
	if !ok {
		c = make(map[string]bson.Raw)
		g.collections[name] = c
	}
	return c
}

func (g *MemoryGateway) Get(ctx context.Context, collection, key string) (bson.Raw, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	raw, ok := g.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (g *MemoryGateway) Set(ctx context.Context, collection, key string, doc interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return wrap("set "+collection, err)
	}
	g.mu.Lock()
	g.coll(collection)[key] = raw
	g.mu.Unlock()
	g.notify(collection)
	return nil
}

func (g *MemoryGateway) Update(ctx context.Context, collection, key string, fields map[string]interface{}) error {
	g.mu.Lock()
	raw, ok := g.collections[collection][key]
	if !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		g.mu.Unlock()
		return wrap("update "+collection, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		g.mu.Unlock()
		return wrap("update "+collection, err)
	}
	g.collections[collection][key] = updated
	g.mu.Unlock()
	g.notify(collection)
	return nil
}

func (g *MemoryGateway) Append(ctx context.Context, collection, key, field string, value interface{}) error {
	g.mu.Lock()
	raw, ok := g.collections[collection][key]
	if !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		g.mu.Unlock()
		return wrap("append "+collection, err)
	}

	arr, _ := doc[field].(bson.A)
	for _, existing := range arr {
		if fmt.Sprint(existing) == fmt.Sprint(value) {
			g.mu.Unlock()
			return nil // 幂等：已存在
		}
	}
	doc[field] = append(arr, value)

	updated, err := bson.Marshal(doc)
	if err != nil {
		g.mu.Unlock()
		return wrap("append "+collection, err)
	}
	g.collections[collection][key] = updated
	g.mu.Unlock()
	g.notify(collection)
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, collection, key string) error {
	g.mu.Lock()
	c := g.collections[collection]
	if _, ok := c[key]; !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	delete(c, key)
	g.mu.Unlock()
	g.notify(collection)
	return nil
}

func (g *MemoryGateway) Query(ctx context.Context, collection string, filter Filter, orderBy string) ([]bson.Raw, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.queryLocked(collection, filter, orderBy)
}

func (g *MemoryGateway) queryLocked(collection string, filter Filter, orderBy string) ([]bson.Raw, error) {
	type entry struct {
		raw bson.Raw
		doc bson.M
	}
	var entries []entry
	for _, raw := range g.collections[collection] {
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return nil, wrap("query "+collection, err)
		}
		if !matches(doc, filter) {
			continue
		}
		entries = append(entries, entry{raw: raw, doc: doc})
	}

	if orderBy != "" {
		sort.SliceStable(entries, func(i, j int) bool {
			return lessField(entries[i].doc[orderBy], entries[j].doc[orderBy])
		})
	}

	result := make([]bson.Raw, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.raw)
	}
	return result, nil
}

func matches(doc bson.M, filter Filter) bool {
	for k, want := range filter {
		if fmt.Sprint(doc[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func lessField(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (g *MemoryGateway) Subscribe(ctx context.Context, collection string, filter Filter, orderBy string) (<-chan Snapshot, error) {
	sub := &memorySub{
		filter:  filter,
		orderBy: orderBy,
		ch:      make(chan Snapshot, 8),
		done:    ctx.Done(),
	}

	g.mu.Lock()
	g.subs[collection] = append(g.subs[collection], sub)
	docs, err := g.queryLocked(collection, filter, orderBy)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sub.ch <- Snapshot{Docs: docs}

	go func() {
		<-ctx.Done()
		// 在写锁内移除并关闭，保证 notify 不会再向已关闭的通道发送
		g.mu.Lock()
		list := g.subs[collection]
		for i, s := range list {
			if s == sub {
				g.subs[collection] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(sub.ch)
		g.mu.Unlock()
	}()

	return sub.ch, nil
}

// notify 集合变更后向所有订阅者推送新快照
func (g *MemoryGateway) notify(collection string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, sub := range g.subs[collection] {
		select {
		case <-sub.done:
			continue
		default:
		}
		docs, err := g.queryLocked(collection, sub.filter, sub.orderBy)
		snap := Snapshot{Docs: docs, Err: err}
		select {
		case sub.ch <- snap:
		default:
			// 订阅方消费过慢时丢弃中间快照，下一次推送仍是全量
		}
	}
}
