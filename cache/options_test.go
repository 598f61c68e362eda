package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestQueryOptionsMerge(t *testing.T) {
	next := func(any, []any) (any, bool) { return nil, false }
	defaults := QueryOptions{
		Enabled:          Bool(false),
		StaleTime:        time.Minute,
		Retry:            3,
		Meta:             map[string]any{"source": "defaults"},
		InitialPageParam: 1,
	}

	merged := defaults.Merge(QueryOptions{
		StaleTime:        time.Second,
		CacheTime:        time.Hour,
		GetNextPageParam: next,
	})

	if merged.IsEnabled() {
		t.Error("unset Enabled should keep the default")
	}
	if merged.StaleTime != time.Second || merged.CacheTime != time.Hour {
		t.Errorf("call options should win, got %+v", merged)
	}
	if merged.Retry != 3 || merged.InitialPageParam != 1 || merged.Meta["source"] != "defaults" {
		t.Errorf("unset fields should keep defaults, got %+v", merged)
	}
	if merged.GetNextPageParam == nil {
		t.Error("expected GetNextPageParam to be set")
	}

	merged = merged.Merge(QueryOptions{Enabled: Bool(true)})
	if !merged.IsEnabled() {
		t.Error("explicit Enabled should override")
	}
	if !(QueryOptions{}).IsEnabled() {
		t.Error("queries are enabled by default")
	}

	fetch := merged.FetchOptions()
	if fetch.StaleTime != time.Second || fetch.Retry != 3 || fetch.InitialPageParam != 1 {
		t.Errorf("unexpected fetch options %+v", fetch)
	}
}

func TestQueryOptionsMerge_ZeroIsUnset(t *testing.T) {
	defaults := QueryOptions{Enabled: Bool(true), StaleTime: time.Minute, Retry: 3}

	merged := defaults.Merge(QueryOptions{Enabled: Bool(false), StaleTime: 0, Retry: 0})
	if merged.IsEnabled() {
		t.Error("an explicit false Enabled should override")
	}
	if merged.StaleTime != time.Minute || merged.Retry != 3 {
		t.Errorf("zero values are unset and keep the defaults, got %+v", merged)
	}
}

func TestFiltersMerge(t *testing.T) {
	defaults := Filters{Key: Key{"posts"}, Exact: true, Stale: Bool(true)}

	merged := defaults.Merge(Filters{Key: Key{"posts", 1}, Type: QueryTypeActive})
	if !merged.Key.Equal(Key{"posts", 1}) {
		t.Errorf("call key should win, got %v", merged.Key)
	}
	if !merged.Exact {
		t.Error("Exact is kept once set")
	}
	if merged.Type != QueryTypeActive || merged.Stale == nil || !*merged.Stale {
		t.Errorf("unexpected merge %+v", merged)
	}

	merged = Filters{}.Merge(Filters{Exact: true, Fetching: Bool(false)})
	if !merged.Exact || merged.Fetching == nil || *merged.Fetching {
		t.Errorf("unexpected merge %+v", merged)
	}
}

func TestStateIsStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := State{HasData: true, DataUpdatedAt: now.Add(-time.Second)}

	tests := []struct {
		name      string
		state     State
		staleTime time.Duration
		want      bool
	}{
		{"no data", State{}, StaleForever, true},
		{"invalidated", State{HasData: true, IsInvalidated: true, DataUpdatedAt: now}, StaleForever, true},
		{"zero stale time", fresh, 0, true},
		{"within window", fresh, time.Minute, false},
		{"past window", fresh, time.Millisecond, true},
		{"forever", State{HasData: true, DataUpdatedAt: now.Add(-24 * time.Hour)}, StaleForever, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.staleTime, now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

type decodePost struct {
	ID    int
	Title string
}

func TestDecode(t *testing.T) {
	post := decodePost{ID: 1, Title: "hello"}

	got, err := Decode[decodePost](post)
	if err != nil || got != post {
		t.Fatalf("Decode(same type) = %+v, %v", got, err)
	}

	raw, err := msgpack.Marshal(post)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err = Decode[decodePost](msgpack.RawMessage(raw))
	if err != nil || got != post {
		t.Fatalf("Decode(raw) = %+v, %v", got, err)
	}

	got, err = Decode[decodePost](map[string]any{"ID": 2, "Title": "map"})
	if err != nil || got.ID != 2 || got.Title != "map" {
		t.Fatalf("Decode(map) = %+v, %v", got, err)
	}

	zero, err := Decode[decodePost](nil)
	if err != nil || zero != (decodePost{}) {
		t.Fatalf("Decode(nil) = %+v, %v", zero, err)
	}

	if _, err := Decode[int]("not a number"); !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType, got %v", err)
	}
}

func TestAsInfiniteData(t *testing.T) {
	data := InfiniteData{Pages: []any{"a"}, PageParams: []any{0}}

	if got, ok := AsInfiniteData(data); !ok || len(got.Pages) != 1 {
		t.Errorf("value form not recognised")
	}
	if got, ok := AsInfiniteData(&data); !ok || len(got.Pages) != 1 {
		t.Errorf("pointer form not recognised")
	}
	if _, ok := AsInfiniteData((*InfiniteData)(nil)); ok {
		t.Error("nil pointer is not infinite data")
	}

	raw, err := msgpack.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, ok := AsInfiniteData(msgpack.RawMessage(raw))
	if !ok || len(got.Pages) != 1 || got.Pages[0] != "a" {
		t.Errorf("raw form not decoded, got %+v", got)
	}

	if _, ok := AsInfiniteData("plain"); ok {
		t.Error("plain values are not infinite data")
	}
}

func TestReplaceWith(t *testing.T) {
	if got := ReplaceWith(5)(1, true); got != 5 {
		t.Errorf("ReplaceWith() = %v", got)
	}
}
