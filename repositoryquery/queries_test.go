package repositoryquery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// TestUser represents a test entity
type TestUser struct {
	ID    string
	Name  string
	Email string
}

// mockRepository serves users from memory and records every call
type mockRepository struct {
	mu        sync.Mutex
	calls     []string
	users     []TestUser
	pageSize  int
	listCalls int
	criteria  []int
	err       error
}

func newMockRepository(pageSize int, users ...TestUser) *mockRepository {
	return &mockRepository{users: append([]TestUser(nil), users...), pageSize: pageSize}
}

func (m *mockRepository) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *mockRepository) find(match func(TestUser) bool) (TestUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return TestUser{}, m.err
	}
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return TestUser{}, errors.New("user not found")
}

func (m *mockRepository) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (TestUser, error) {
	m.recordCall("GetByID")
	return m.find(func(u TestUser) bool { return u.ID == id })
}

func (m *mockRepository) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (TestUser, error) {
	m.recordCall("GetByIdentifier")
	return m.find(func(u TestUser) bool { return u.Email == identifier })
}

// List serves consecutive pages in call order; the bun criteria cannot be
// inspected without a database
func (m *mockRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]TestUser, int, error) {
	m.recordCall("List")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	m.criteria = append(m.criteria, len(criteria))
	start := m.listCalls * m.pageSize
	m.listCalls++
	if start >= len(m.users) {
		return []TestUser{}, len(m.users), nil
	}
	end := min(start+m.pageSize, len(m.users))
	return append([]TestUser(nil), m.users[start:end]...), len(m.users), nil
}

func (m *mockRepository) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	m.recordCall("Count")
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), m.err
}

func (m *mockRepository) Create(ctx context.Context, record TestUser, criteria ...repository.InsertCriteria) (TestUser, error) {
	m.recordCall("Create")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return TestUser{}, m.err
	}
	m.users = append(m.users, record)
	return record, nil
}

func (m *mockRepository) Update(ctx context.Context, record TestUser, criteria ...repository.UpdateCriteria) (TestUser, error) {
	m.recordCall("Update")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return TestUser{}, m.err
	}
	for i := range m.users {
		if m.users[i].ID == record.ID {
			m.users[i] = record
		}
	}
	return record, nil
}

func (m *mockRepository) Delete(ctx context.Context, record TestUser) error {
	m.recordCall("Delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	kept := m.users[:0]
	for _, u := range m.users {
		if u.ID != record.ID {
			kept = append(kept, u)
		}
	}
	m.users = kept
	return nil
}

var seedUsers = []TestUser{
	{ID: "1", Name: "John Doe", Email: "john@example.com"},
	{ID: "2", Name: "Jane Smith", Email: "jane@example.com"},
	{ID: "3", Name: "Bob Johnson", Email: "bob@example.com"},
	{ID: "4", Name: "Alice Brown", Email: "alice@example.com"},
	{ID: "5", Name: "Carol White", Email: "carol@example.com"},
}

func newEngine(t *testing.T) *cacheinfra.QueryClient {
	t.Helper()
	c, err := cacheinfra.New(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestByID_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository(2, seedUsers...)
	byID := ByID[TestUser](repo, WithClient(newEngine(t)))

	if got := byID.Key("1"); !got.Equal(cache.Key{"test_user", "by_id", "1"}) {
		t.Fatalf("unexpected key %v", got)
	}

	for i := 0; i < 3; i++ {
		u, err := byID.Fetch(ctx, "1", cache.FetchOptions{StaleTime: cache.StaleForever})
		if err != nil {
			t.Fatalf("Fetch returned error: %v", err)
		}
		if u.Name != "John Doe" {
			t.Fatalf("unexpected user %+v", u)
		}
	}

	if n := repo.count("GetByID"); n != 1 {
		t.Errorf("expected 1 repository read, got %d", n)
	}
}

func TestByID_MissingID(t *testing.T) {
	repo := newMockRepository(2, seedUsers...)
	byID := ByID[TestUser](repo, WithClient(newEngine(t)))

	_, err := byID.Fetch(context.Background())
	if !errors.Is(err, cache.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if n := repo.count("GetByID"); n != 0 {
		t.Errorf("repository should not be called, got %d calls", n)
	}
}

func TestByID_RepositoryErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	repo := newMockRepository(2, seedUsers...)
	repo.err = boom
	byID := ByID[TestUser](repo, WithClient(newEngine(t)))

	_, err := byID.Fetch(context.Background(), "1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestByIdentifierAndCount(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	repo := newMockRepository(2, seedUsers...)

	byIdentifier := ByIdentifier[TestUser](repo, WithClient(engine), WithNamespace("people"))
	u, err := byIdentifier.Fetch(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if u.ID != "2" {
		t.Errorf("unexpected user %+v", u)
	}
	if _, ok := engine.GetQueryData(cache.Key{"people", "by_identifier", "jane@example.com"}); !ok {
		t.Error("expected entry under the custom namespace")
	}

	total, err := Count[TestUser](repo, WithClient(engine)).Fetch(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if total != len(seedUsers) {
		t.Errorf("expected %d, got %d", len(seedUsers), total)
	}
}

func TestList_Pagination(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository(2, seedUsers...)
	active := func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("active = ?", true) }
	users := List[TestUser](repo, 2, WithClient(newEngine(t)), WithCriteria(active))

	opts := ListOptions[TestUser]()
	opts.Pages = 10
	data, err := users.FetchInfinite(ctx, opts)
	if err != nil {
		t.Fatalf("FetchInfinite returned error: %v", err)
	}

	if len(data.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(data.Pages))
	}
	wantOffsets := []int{0, 2, 4}
	for i, page := range data.Pages {
		if page.Offset != wantOffsets[i] {
			t.Errorf("page %d offset = %d, want %d", i, page.Offset, wantOffsets[i])
		}
		if page.Total != len(seedUsers) {
			t.Errorf("page %d total = %d", i, page.Total)
		}
		if data.PageParams[i] != wantOffsets[i] {
			t.Errorf("page %d param = %v", i, data.PageParams[i])
		}
	}
	if got := data.Pages[2].Records; len(got) != 1 || got[0].ID != "5" {
		t.Errorf("unexpected last page %+v", got)
	}

	for i, n := range repo.criteria {
		if n != 2 {
			t.Errorf("call %d received %d criteria, want 2", i, n)
		}
	}
}

func TestNextOffset(t *testing.T) {
	tests := []struct {
		name   string
		last   Page[TestUser]
		want   any
		wantOK bool
	}{
		{"first page", Page[TestUser]{Records: make([]TestUser, 2), Total: 5, Offset: 0}, 2, true},
		{"last page", Page[TestUser]{Records: make([]TestUser, 1), Total: 5, Offset: 4}, nil, false},
		{"exact end", Page[TestUser]{Records: make([]TestUser, 2), Total: 4, Offset: 2}, nil, false},
		{"empty page", Page[TestUser]{Total: 5, Offset: 2}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOffset(tt.last, nil)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NextOffset = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestOffsetOf(t *testing.T) {
	for _, v := range []any{nil, 4, int8(4), int64(4), uint8(4), uint32(4)} {
		n, err := offsetOf(v)
		if err != nil {
			t.Fatalf("offsetOf(%T) returned error: %v", v, err)
		}
		if v != nil && n != 4 {
			t.Errorf("offsetOf(%T) = %d", v, n)
		}
	}
	if _, err := offsetOf("4"); !errors.Is(err, cache.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestList_RejectsNonPositivePageSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	List[TestUser](newMockRepository(0), 0)
}
