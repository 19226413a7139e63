package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := zap.NewExample().Sugar()
	assert.Same(t, l, OrNop(l))
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init(true))
	assert.NotNil(t, GetSugaredLogger())
	Sync()
}
