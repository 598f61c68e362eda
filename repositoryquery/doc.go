// Package repositoryquery builds query resources over go-repository-bun
// repositories.
//
// # Overview
//
// Each resource is a queryhelper.Resource whose key lives under a namespace
// derived from the record type (User becomes "user", *OrderLine becomes
// "order_line"):
//
//   - ByID: [namespace, "by_id", id], arity 1
//   - ByIdentifier: [namespace, "by_identifier", identifier], arity 1
//   - Count: [namespace, "count"], arity 0
//   - List: [namespace, "list"], paginated by row offset
//
// Ids are keyed as strings, so pass them as strings to keep reads and the
// entries written by Mutations on the same key.
//
// # Basic Usage
//
//	users := repositoryquery.NewQueries[User](repo, 20)
//
//	u, err := users.ByID.Fetch(ctx, "user-123")
//	pages, err := users.List.FetchInfinite(ctx, repositoryquery.ListOptions[User]())
//
// # Keeping Reads Fresh
//
// Mutations writes through the repository and then maintains the cache:
//
//	m := users.Mutations(repo)
//	updated, err := m.Update(ctx, u)
//
//   - Create invalidates lists and counts and seeds the by-id entry
//   - Update replaces the by-id entry and invalidates identifiers and lists
//   - Delete drops the by-id entry and invalidates identifiers, lists and counts
//
// Invalidated entries that are being watched refetch right away; the rest
// refetch on their next read. Repository errors are returned unchanged and
// leave the cache untouched.
package repositoryquery
