package kgerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeRoundTrip(t *testing.T) {
	errs := []error{
		Validation("unknown type names", "Foo", "Bar"),
		Query("props.x >", "syntax error"),
		Unsupported("coreness on a directed graph"),
		fmt.Errorf("wait: %w", ErrCancelled),
		fmt.Errorf("wait: %w", ErrTimedOut),
		fmt.Errorf("cursor: %w", ErrInvalidState),
		fmt.Errorf("dial: %w", ErrConnection),
	}
	sentinels := []error{ErrValidation, ErrQuery, ErrUnsupportedConfiguration, ErrCancelled, ErrTimedOut, ErrInvalidState, ErrConnection}

	for i, err := range errs {
		back := FromCode(Code(err), err.Error(), Names(err))
		assert.ErrorIs(t, back, sentinels[i], "code %s", Code(err))
	}
	assert.Equal(t, []string{"Foo", "Bar"}, Names(FromCode(CodeValidation, "x", []string{"Foo", "Bar"})))
	assert.Equal(t, CodeInternal, Code(errors.New("boom")))
	assert.Equal(t, "", Code(nil))
}

func TestFromContext(t *testing.T) {
	assert.ErrorIs(t, FromContext(context.Canceled), ErrCancelled)
	assert.ErrorIs(t, FromContext(context.DeadlineExceeded), ErrTimedOut)
}
