package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agritrace/collection-model/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorType
	}{
		{"classified validation", Errorf(models.ErrorTypeValidation, "bad data"), models.ErrorTypeValidation},
		{"classified storage", Errorf(models.ErrorTypeStorage, "db down"), models.ErrorTypeStorage},
		{"wrapped classified", fmt.Errorf("outer: %w", Errorf(models.ErrorTypeConfig, "no such source")), models.ErrorTypeConfig},
		{"unclassified defaults to unknown", errors.New("whatever"), models.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorfPreservesWrapping(t *testing.T) {
	err := Errorf(models.ErrorTypeConfig, "%w: %q", ErrProcessorNotFound, "bogus")
	assert.True(t, errors.Is(err, ErrProcessorNotFound))
	assert.Equal(t, models.ErrorTypeConfig, Classify(err))
}

func TestBatchErrorNamesDocumentAndFile(t *testing.T) {
	cause := errors.New("corrupt entry")
	err := Errorf(models.ErrorTypeValidation, "%w",
		&BatchError{DocumentID: "photo-1", File: "photos/1.jpg", Err: cause})

	var be *BatchError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, "photo-1", be.DocumentID)
	assert.Equal(t, "photos/1.jpg", be.File)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `document "photo-1"`)
}
