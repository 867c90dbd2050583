package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	var out bytes.Buffer

	assert.True(t, errors.Is(run(nil, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"drop-everything"}, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"create-user", "-bogus"}, &out), errUsage))
	assert.Empty(t, out.String())
}

func TestIssueTokenValidatesUserID(t *testing.T) {
	var out bytes.Buffer

	err := run([]string{"issue-token", "-user-id", "abc"}, &out)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errUsage))
	assert.Contains(t, err.Error(), "invalid -user-id")
}
