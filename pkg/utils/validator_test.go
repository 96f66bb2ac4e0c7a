package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/constants"
)

func TestValidTicker(t *testing.T) {
	for _, s := range []string{"AAPL", "^VIX", "ES=F", "BRK.B", "SPY", "7203.T"} {
		assert.True(t, ValidTicker(s), s)
	}
	for _, s := range []string{"", "aapl", "AAPL/", "A B", "=F", "ABCDEFGHIJKLMNOP"} {
		assert.False(t, ValidTicker(s), s)
	}
}

func TestValidateStruct(t *testing.T) {
	type newsQuery struct {
		Symbol   string `validate:"required,ticker"`
		DaysBack int    `validate:"min=1,max=365"`
	}

	assert.NoError(t, ValidateStruct(newsQuery{Symbol: "AAPL", DaysBack: 7}))

	err := ValidateStruct(newsQuery{Symbol: "bad symbol", DaysBack: 400})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ErrCodeInvalidRequest, appErr.Code())
	assert.Equal(t, "must be a ticker symbol", appErr.Metadata()["symbol"])
	assert.Equal(t, "must be at most 365", appErr.Metadata()["days_back"])
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "days_back", toSnakeCase("DaysBack"))
	assert.Equal(t, "api_name", toSnakeCase("APIName"))
}
