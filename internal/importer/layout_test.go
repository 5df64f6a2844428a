package importer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/csrgo/internal/estimate"
	"github.com/hupe1980/csrgo/model"
)

func TestScratchSizesMatchEstimate(t *testing.T) {
	assert.Equal(t, uintptr(estimate.RecordBytes), unsafe.Sizeof(record{}))
	assert.Equal(t, uintptr(estimate.EdgeBytes), unsafe.Sizeof(model.Edge{}))
	assert.Equal(t, estimate.DefaultBatchSize, DefaultBatchSize)
}
