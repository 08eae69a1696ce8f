package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, ""},
		{"no data", fmt.Errorf("%w: tried 3 providers", ErrNoData), CategoryNoData},
		{"network", fmt.Errorf("fetch manifest: %w", ErrNetwork), CategoryNetwork},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), CategoryNetwork},
		{"csv", fmt.Errorf("%w: header", ErrCSV), CategoryCSV},
		{"api", fmt.Errorf("%w: 401", ErrAPI), CategoryAPI},
		{"validation", fmt.Errorf("%w: bad speed", ErrValidation), CategoryValidation},
		{"map init", ErrMapInit, CategoryMapInit},
		{"other", errors.New("boom"), CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCategory_Retryable(t *testing.T) {
	assert.False(t, CategoryValidation.Retryable())
	for _, c := range []Category{CategoryNoData, CategoryNetwork, CategoryCSV, CategoryAPI, CategoryMapInit, CategoryGeneric} {
		assert.True(t, c.Retryable(), string(c))
	}
}
