package txerr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanQuigley/systemd/pkg/txerr"
)

type customErr struct{ msg string }

func (e customErr) Error() string { return e.msg }

func TestNewAndErrorf(t *testing.T) {
	err := txerr.New("boom")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())

	err2 := txerr.Errorf("boom %d", 42)
	assert.Equal(t, "boom 42", err2.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	base := txerr.New("root cause")
	wrapped := txerr.Wrap(base, "context")
	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "context")
	assert.Contains(t, wrapped.Error(), "root cause")
	assert.Equal(t, base, txerr.Cause(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, txerr.Wrap(nil, "context"))
}

func TestIsMatchesSentinel(t *testing.T) {
	sentinel := txerr.New("sentinel")
	wrapped := txerr.Wrapf(sentinel, "attempt %d", 1)
	assert.True(t, txerr.Is(wrapped, sentinel))
}

func TestAsFindsWrappedConcreteType(t *testing.T) {
	inner := customErr{msg: "inner"}
	wrapped := fmt.Errorf("outer: %w", inner)

	var target customErr
	require.True(t, txerr.As(wrapped, &target))
	assert.Equal(t, "inner", target.msg)
}

func TestAsPanicsOnNonPointer(t *testing.T) {
	assert.Panics(t, func() {
		var target customErr
		txerr.As(txerr.New("x"), target)
	})
}
