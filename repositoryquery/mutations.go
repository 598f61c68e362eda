package repositoryquery

import (
	"context"
	"errors"
	"reflect"

	"github.com/goliatone/go-query-cache/cache"
	repository "github.com/goliatone/go-repository-bun"
	"go.uber.org/zap"
)

// Writer is the write side of a go-repository-bun repository.
type Writer[T any] interface {
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

var _ Writer[any] = (repository.Repository[any])(nil)

// Mutations writes through a repository and keeps the read resources of a
// Queries in step. Writes succeed or fail on the repository alone; cache
// maintenance failures are logged.
type Mutations[T any] struct {
	queries *Queries[T]
	repo    Writer[T]
	logger  *zap.Logger
}

// Mutations returns the write side paired with q.
func (q *Queries[T]) Mutations(repo Writer[T]) *Mutations[T] {
	return &Mutations[T]{queries: q, repo: repo, logger: q.opts.logger}
}

// Create inserts record. Lists and counts are invalidated.
func (m *Mutations[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := m.repo.Create(ctx, record, criteria...)
	if err != nil {
		return result, err
	}
	m.invalidateCollections(ctx)
	if id, ok := extractID(result); ok {
		m.warn("seed created record", m.seed(id, result))
	}
	return result, nil
}

// Update writes record. The stored result replaces the cached by-id value,
// lookups by identifier and every list are invalidated.
func (m *Mutations[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := m.repo.Update(ctx, record, criteria...)
	if err != nil {
		return result, err
	}
	if id, ok := extractID(result); ok {
		m.warn("update cached record", m.seed(id, result))
	} else {
		m.warn("invalidate records", m.queries.ByID.Invalidate(ctx))
	}
	m.warn("invalidate identifiers", m.queries.ByIdentifier.Invalidate(ctx))
	m.warn("invalidate lists", m.queries.List.Invalidate(ctx))
	return result, nil
}

// Delete removes record. Its by-id entry is dropped; identifiers, lists and
// counts are invalidated.
func (m *Mutations[T]) Delete(ctx context.Context, record T) error {
	if err := m.repo.Delete(ctx, record); err != nil {
		return err
	}
	if id, ok := extractID(record); ok {
		m.warn("remove cached record", m.queries.ByID.Remove(cache.Filters{Key: m.queries.ByID.Key(id), Exact: true}))
	} else {
		m.warn("invalidate records", m.queries.ByID.Invalidate(ctx))
	}
	m.warn("invalidate identifiers", m.queries.ByIdentifier.Invalidate(ctx))
	m.invalidateCollections(ctx)
	return nil
}

func (m *Mutations[T]) invalidateCollections(ctx context.Context) {
	m.warn("invalidate lists", m.queries.List.Invalidate(ctx))
	m.warn("invalidate counts", m.queries.Count.Invalidate(ctx))
}

func (m *Mutations[T]) seed(id string, record T) error {
	_, err := m.queries.ByID.SetData(id, record)
	return err
}

func (m *Mutations[T]) warn(msg string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, cache.ErrClientNotSet) {
		m.logger.Debug(msg+" skipped", zap.Error(err))
		return
	}
	m.logger.Warn(msg, zap.Error(err))
}

// extractID reads the ID field of a struct record in the string form ByID
// keys it under.
func extractID(record any) (string, bool) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}
	for _, name := range []string{"ID", "Id"} {
		field := v.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() || field.IsZero() {
			continue
		}
		id, err := stringArg(name, field.Interface())
		if err != nil {
			return "", false
		}
		return id, true
	}
	return "", false
}
