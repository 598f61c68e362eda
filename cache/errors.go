package cache

import (
	goerrors "github.com/goliatone/go-errors"
)

// Sentinel errors shared by the engine and the query helpers. They are
// returned as-is or wrapped with fmt.Errorf("%w"), so callers match them with
// errors.Is.
var (
	// ErrClientNotSet is returned by every dispatching operation when no
	// client was bound, neither process-wide nor on the resource.
	ErrClientNotSet = goerrors.New(
		"query client is not set, call queryhelper.SetClient or bind one with WithClient",
		goerrors.CategoryInternal,
	).WithTextCode("CLIENT_NOT_SET")

	// ErrInvalidArgument reports misuse of the call protocol: too many
	// trailing arguments, or a trailing argument of the wrong type.
	ErrInvalidArgument = goerrors.New("invalid argument", goerrors.CategoryBadInput).
				WithTextCode("INVALID_ARGUMENT")

	// ErrInvalidResultType is returned when a cached value cannot be
	// converted into the type a resource declares.
	ErrInvalidResultType = goerrors.New("cached value has unexpected type", goerrors.CategoryInternal).
				WithTextCode("INVALID_RESULT_TYPE")

	// ErrFetchCancelled is delivered to callers waiting on a fetch that was
	// cancelled through CancelQueries.
	ErrFetchCancelled = goerrors.New("fetch cancelled", goerrors.CategoryOperation).
				WithTextCode("FETCH_CANCELLED")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = goerrors.New("invalid cache configuration", goerrors.CategoryValidation).
				WithTextCode("INVALID_CONFIG")

	// ErrInvalidResource wraps resource definition validation failures.
	ErrInvalidResource = goerrors.New("invalid resource definition", goerrors.CategoryValidation).
				WithTextCode("INVALID_RESOURCE")
)
