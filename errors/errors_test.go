package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "node Concept:human")

	assert.Contains(t, wrapped.Error(), "node Concept:human")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrMalformedPattern))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"not found", NewNotFoundError("atom %s", "abc"), ErrNotFound, "atom abc"},
		{"invalid request", NewInvalidRequestError("bad cursor %d", 3), ErrInvalidRequest, "bad cursor 3"},
		{"malformed", NewMalformedPatternError("link %q has no targets", "Set"), ErrMalformedPattern, `link "Set" has no targets`},
		{"query format", NewQueryFormatError("unknown key %q", "nod"), ErrUnexpectedQueryFormat, `unknown key "nod"`},
		{"assignment", NewInvalidAssignmentError("frozen"), ErrInvalidAssignment, "frozen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, Is(tt.err, tt.sentinel))
			assert.Contains(t, tt.err.Error(), tt.message)
		})
	}
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "x")))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(New("other")))

	assert.True(t, IsInvalidRequestError(NewMalformedPatternError("x")))
	assert.True(t, IsInvalidRequestError(NewQueryFormatError("x")))
	assert.True(t, IsInvalidRequestError(ErrInvalidRequest))
	assert.False(t, IsInvalidRequestError(ErrNotFound))

	assert.True(t, IsConnectionError(Wrap(ErrConnection, "GET /count")))
	assert.True(t, IsConnectionError(ErrTimeout))
	assert.False(t, IsConnectionError(nil))
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
}

func TestErrorChaining(t *testing.T) {
	err := Wrap(ErrConnection, "layer 1")
	err = WithHint(err, "check remote.url")
	err = Wrap(err, "layer 2")

	assert.True(t, Is(err, ErrConnection))
	assert.Contains(t, err.Error(), "layer 2")
	assert.Contains(t, GetAllHints(err), "check remote.url")
}

func ExampleWrap() {
	err := Wrap(ErrNotFound, "link Inheritance")
	fmt.Println(err)
	// Output: link Inheritance: not found
}
