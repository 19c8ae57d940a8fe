package helpers

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))

	nf := errors.NotFoundf("node=0003")
	single := FoldErrors([]error{nil, nf})
	assert.True(t, errors.IsNotFound(single))

	many := FoldErrors([]error{errors.New("first"), nil, errors.New("100% second")})
	assert.Equal(t, "first\n100% second", many.Error())
}
