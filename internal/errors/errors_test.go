package errors_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "[pkg Func] read %s", "x"))

	err := apperrors.Wrapf(apperrors.ErrNotFound, "[pkg Func] read %s", "credentials.yaml")
	require.EqualError(t, err, "[pkg Func] read credentials.yaml: not found")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
