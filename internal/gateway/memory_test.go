package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type testDoc struct {
	ID    string   `bson:"_id"`
	Name  string   `bson:"name"`
	Rank  int      `bson:"rank"`
	Items []string `bson:"items"`
}

func TestMemoryGatewaySetGet(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "docs", "a", &testDoc{ID: "a", Name: "first"}))

	raw, err := g.Get(ctx, "docs", "a")
	require.NoError(t, err)

	var got testDoc
	require.NoError(t, Decode(raw, &got))
	assert.Equal(t, "first", got.Name)

	_, err = g.Get(ctx, "docs", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGatewayUpdate(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "docs", "a", &testDoc{ID: "a", Name: "first", Rank: 1}))
	require.NoError(t, g.Update(ctx, "docs", "a", map[string]interface{}{"name": "renamed"}))

	raw, err := g.Get(ctx, "docs", "a")
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, Decode(raw, &got))
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, got.Rank) // 未更新的字段保留

	err = g.Update(ctx, "docs", "missing", map[string]interface{}{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGatewayAppendIdempotent(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "docs", "a", &testDoc{ID: "a"}))
	require.NoError(t, g.Append(ctx, "docs", "a", "items", "x"))
	require.NoError(t, g.Append(ctx, "docs", "a", "items", "x"))
	require.NoError(t, g.Append(ctx, "docs", "a", "items", "y"))

	raw, err := g.Get(ctx, "docs", "a")
	require.NoError(t, err)
	var got testDoc
	require.NoError(t, Decode(raw, &got))
	assert.Equal(t, []string{"x", "y"}, got.Items)

	assert.ErrorIs(t, g.Append(ctx, "docs", "missing", "items", "x"), ErrNotFound)
}

func TestMemoryGatewayDelete(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "docs", "a", &testDoc{ID: "a"}))
	require.NoError(t, g.Delete(ctx, "docs", "a"))

	_, err := g.Get(ctx, "docs", "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, g.Delete(ctx, "docs", "a"), ErrNotFound)
}

func TestMemoryGatewayQuery(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "docs", "a", &testDoc{ID: "a", Name: "red", Rank: 3}))
	require.NoError(t, g.Set(ctx, "docs", "b", &testDoc{ID: "b", Name: "red", Rank: 1}))
	require.NoError(t, g.Set(ctx, "docs", "c", &testDoc{ID: "c", Name: "blue", Rank: 2}))

	raws, err := g.Query(ctx, "docs", Filter{"name": "red"}, "rank")
	require.NoError(t, err)

	docs, err := DecodeAll[testDoc](raws)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
}

func TestMemoryGatewaySubscribe(t *testing.T) {
	g := NewMemoryGateway()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, g.Set(context.Background(), "docs", "a", &testDoc{ID: "a", Rank: 1}))

	ch, err := g.Subscribe(ctx, "docs", Filter{}, "rank")
	require.NoError(t, err)

	// 首个快照为当前全量结果
	snap := waitSnapshot(t, ch)
	require.NoError(t, snap.Err)
	assert.Len(t, snap.Docs, 1)

	// 写入后推送新的全量快照
	require.NoError(t, g.Set(context.Background(), "docs", "b", &testDoc{ID: "b", Rank: 2}))
	snap = waitSnapshot(t, ch)
	require.NoError(t, snap.Err)
	assert.Len(t, snap.Docs, 2)

	// 取消订阅后通道关闭
	cancel()
	assertClosed(t, ch)
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription channel closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func assertClosed(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel was not closed")
		}
	}
}

// 读路径不得懒建集合表项，-race 下并发读未写过的集合必须安全
func TestMemoryGatewayConcurrentReadsOnMissingCollection(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := g.Get(ctx, "never_written", "k")
				assert.ErrorIs(t, err, ErrNotFound)

				docs, err := g.Query(ctx, "never_written", nil, "")
				assert.NoError(t, err)
				assert.Empty(t, docs)
			}
		}()
	}

	// 并发写另一集合，确认读写路径互不干扰
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			id := fmt.Sprintf("d%d", j)
			assert.NoError(t, g.Set(ctx, "docs", id, &testDoc{ID: id}))
		}
	}()

	wg.Wait()
}

func TestDecodeAll(t *testing.T) {
	a, err := bson.Marshal(testDoc{ID: "a", Name: "x"})
	require.NoError(t, err)
	b, err := bson.Marshal(testDoc{ID: "b", Name: "y"})
	require.NoError(t, err)

	docs, err := DecodeAll[testDoc]([]bson.Raw{a, b})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "y", docs[1].Name)
}
