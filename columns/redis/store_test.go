package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/inboxkit/mailstore/columns"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := New(client)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func insert(t *testing.T, s *Store, table, key string, cols ...columns.Column) {
	t.Helper()
	b := columns.NewBatch()
	b.Insert(table, key, cols...)
	if err := s.Apply(context.Background(), b); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestRedisGetAndRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	insert(t, s, "t", "row",
		columns.Column{Name: "b", Value: []byte("2")},
		columns.Column{Name: "a", Value: []byte("1")},
	)

	got, err := s.Get(ctx, "t", "row", []string{"a", "missing"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got["a"]) != "1" {
		t.Errorf("unexpected a: %q", got["a"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("expected missing column to be absent")
	}

	row, err := s.Row(ctx, "t", "row")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if len(row) != 2 || row[0].Name != "a" || row[1].Name != "b" {
		t.Errorf("expected sorted row, got %v", row)
	}
}

func TestRedisSlice(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, name := range []string{"a", "b", "c", "d"} {
		insert(t, s, "t", "row", columns.Column{Name: name, Value: []byte(name)})
	}

	t.Run("forward exclusive start", func(t *testing.T) {
		cols, err := s.Slice(ctx, "t", "row", "b", 10, false)
		if err != nil {
			t.Fatalf("slice: %v", err)
		}
		if len(cols) != 2 || cols[0].Name != "c" || cols[1].Name != "d" {
			t.Errorf("got %v", cols)
		}
	})

	t.Run("reverse from end", func(t *testing.T) {
		cols, err := s.Slice(ctx, "t", "row", "", 3, true)
		if err != nil {
			t.Fatalf("slice: %v", err)
		}
		if len(cols) != 3 || cols[0].Name != "d" || cols[2].Name != "b" {
			t.Errorf("got %v", cols)
		}
	})

	t.Run("reverse strictly below start", func(t *testing.T) {
		cols, err := s.Slice(ctx, "t", "row", "c", 10, true)
		if err != nil {
			t.Fatalf("slice: %v", err)
		}
		if len(cols) != 2 || cols[0].Name != "b" || cols[1].Name != "a" {
			t.Errorf("got %v", cols)
		}
	})
}

func TestRedisKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, key := range []string{"u1:a", "u1:b", "u2:a"} {
		insert(t, s, "t", key, columns.Column{Name: "x", Value: []byte("v")})
	}

	keys, err := s.Keys(ctx, "t", "u1:", "", 10)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "u1:a" || keys[1] != "u1:b" {
		t.Errorf("got %v", keys)
	}

	keys, err = s.Keys(ctx, "t", "u1:", "u1:a", 10)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "u1:b" {
		t.Errorf("got %v", keys)
	}
}

func TestRedisDeletes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	insert(t, s, "t", "row",
		columns.Column{Name: "a", Value: []byte("1")},
		columns.Column{Name: "b", Value: []byte("2")},
	)

	b := columns.NewBatch()
	b.Delete("t", "row", "a")
	if err := s.Apply(ctx, b); err != nil {
		t.Fatalf("apply: %v", err)
	}
	row, err := s.Row(ctx, "t", "row")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if len(row) != 1 || row[0].Name != "b" {
		t.Errorf("expected only b, got %v", row)
	}

	b = columns.NewBatch()
	b.DeleteRow("t", "row")
	if err := s.Apply(ctx, b); err != nil {
		t.Fatalf("apply: %v", err)
	}
	row, err = s.Row(ctx, "t", "row")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if len(row) != 0 {
		t.Errorf("expected empty row, got %v", row)
	}
}

func TestRedisCounters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.AddCounters(ctx, "c", "row", map[string]int64{"a": 7, "b": 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddCounters(ctx, "c", "row", map[string]int64{"a": -2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.GetCounters(ctx, "c", "row", []string{"a", "b", "x"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["a"] != 5 || got["b"] != 1 {
		t.Errorf("unexpected counters: %v", got)
	}
	if _, ok := got["x"]; ok {
		t.Error("expected unknown counter to be absent")
	}

	all, err := s.RowCounters(ctx, "c", "row")
	if err != nil {
		t.Fatalf("row counters: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unexpected row counters: %v", all)
	}

	if err := s.DeleteCounters(ctx, "c", "row"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err = s.RowCounters(ctx, "c", "row")
	if err != nil {
		t.Fatalf("row counters: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty after delete, got %v", all)
	}
}
