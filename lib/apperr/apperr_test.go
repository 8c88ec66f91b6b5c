package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_KindOf_TaggedError(t *testing.T) {
	err := New(KindValidation, "bad period: %d dates", 1)

	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "validation: bad period: 1 dates", err.Error())
}

func Test_KindOf_WrappedChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindTransfer, "ssh connect failed")
	outer := fmt.Errorf("server web01: %w", err)

	assert.Equal(t, KindTransfer, KindOf(outer))
	assert.True(t, errors.Is(outer, cause))
}

func Test_KindOf_UntaggedError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func Test_Wrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindArchive, "ignored"))
}

func Test_StatusCode_Mapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(New(KindValidation, "x")))
	assert.Equal(t, http.StatusBadGateway, StatusCode(New(KindNotify, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(New(KindTransfer, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("x")))
}
