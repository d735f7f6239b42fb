package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/digest/internal/types"
)

func TestFailureMessage(t *testing.T) {
	reported := &shownError{err: fmt.Errorf("fetch failed: %w", &types.FetchError{Reason: types.FetchTranscriptsDisabled})}
	assert.Empty(t, failureMessage(reported))
	assert.Empty(t, failureMessage(fmt.Errorf("run: %w", reported)))
	assert.Equal(t, types.KindFetch, types.KindOf(reported))

	assert.Equal(t, "failed to initialize pipeline: unsupported provider", failureMessage(errors.New("failed to initialize pipeline: unsupported provider")))
}
