package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyDSN)
}

func TestConfig(t *testing.T) {
	cfg := Config()
	assert.True(t, cfg.TranslateError)
	assert.True(t, cfg.PrepareStmt)
	assert.Equal(t, "UTC", cfg.NowFunc().Location().String())
}
