package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"gocoalesce/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCodeAndChain(t *testing.T) {
	inner := ConfigInvalid("SIM_TRIALS must be positive")
	outer := Wrap(inner, "failed to load simulation configuration")

	assert.Equal(t, CodeConfigInvalid, GetCode(outer))
	assert.True(t, stderrors.Is(outer, inner))
	assert.Equal(t, "failed to load simulation configuration: SIM_TRIALS must be positive", outer.Error())
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
}

func TestGetCodeMapsDomainErrors(t *testing.T) {
	assert.Equal(t, CodeInvalidInput, GetCode(core.NewInvalidParameterError("theta", "must be positive")))
	assert.Equal(t, CodeUndefinedResult, GetCode(fmt.Errorf("rep 3: %w", core.ErrUndefinedInterval)))
	assert.Equal(t, CodeInternalError, GetCode(stderrors.New("disk full")))

	wrapped := Wrapf(core.NewInvalidParameterError("trials", "must be positive"), "setting %d", 2)
	assert.Equal(t, CodeInvalidInput, GetCode(wrapped))
	assert.True(t, core.IsInvalidParameter(wrapped))
}

func TestExportFailed(t *testing.T) {
	err := ExportFailed("workbook", stderrors.New("permission denied"))
	assert.Equal(t, CodeExportFailed, err.Code)
	assert.Contains(t, err.Error(), "failed to export workbook: permission denied")
}
