package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	a, err := DeriveKey("stock_info", "get_quote", "AAPL", 5)
	require.NoError(t, err)
	b, err := DeriveKey("stock_info", "get_quote", "AAPL", 5)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "cache:stock_info:"))
	assert.Len(t, strings.TrimPrefix(a, "cache:stock_info:"), 32)
}

func TestDeriveKey_MapOrderDoesNotMatter(t *testing.T) {
	a, err := DeriveKey("p", "f", map[string]int{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	b, err := DeriveKey("p", "f", map[string]int{"c": 3, "b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveKey("p", "f", NamedArgs{"symbol": "AAPL", "days": 7})
	require.NoError(t, err)
	d, err := DeriveKey("p", "f", NamedArgs{"days": 7, "symbol": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, c, d)
}

func TestDeriveKey_SliceOrderMatters(t *testing.T) {
	a, err := DeriveKey("p", "f", []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	b, err := DeriveKey("p", "f", []string{"MSFT", "AAPL"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveKey_DistinguishesNameAndArgs(t *testing.T) {
	keys := map[string]struct{}{}
	for _, tc := range []struct {
		name string
		args []any
	}{
		{"get_quote", []any{"AAPL"}},
		{"get_quote", []any{"MSFT"}},
		{"get_news", []any{"AAPL"}},
		{"get_news", []any{"AAPL", 7}},
	} {
		k, err := DeriveKey("p", tc.name, tc.args...)
		require.NoError(t, err)
		keys[k] = struct{}{}
	}
	assert.Len(t, keys, 4)
}

func TestDeriveKey_StructsAndPointers(t *testing.T) {
	type query struct {
		Symbol string
		Days   int
	}
	a, err := DeriveKey("p", "f", query{"AAPL", 7})
	require.NoError(t, err)
	b, err := DeriveKey("p", "f", &query{"AAPL", 7})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKey_UnexportedStructFields(t *testing.T) {
	type request struct {
		symbol string
		days   int
	}
	a, err := DeriveKey("stock_info", "f", request{"AAPL", 7})
	require.NoError(t, err)
	b, err := DeriveKey("stock_info", "f", request{"MSFT", 7})
	require.NoError(t, err)
	c, err := DeriveKey("stock_info", "f", &request{"AAPL", 7})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestDeriveKey_NestedValues(t *testing.T) {
	type inner struct {
		tags map[string]int
	}
	type outer struct {
		Name  string
		inner *inner
	}
	a, err := DeriveKey("p", "f", outer{"x", &inner{map[string]int{"a": 1, "b": 2}}})
	require.NoError(t, err)
	b, err := DeriveKey("p", "f", outer{"x", &inner{map[string]int{"b": 2, "a": 1}}})
	require.NoError(t, err)
	c, err := DeriveKey("p", "f", outer{"x", &inner{map[string]int{"a": 1, "b": 3}}})
	require.NoError(t, err)
	d, err := DeriveKey("p", "f", outer{"x", nil})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	e, err := DeriveKey("p", "f", []time.Time{ts})
	require.NoError(t, err)
	f, err := DeriveKey("p", "f", []time.Time{ts.Add(time.Second)})
	require.NoError(t, err)
	assert.NotEqual(t, e, f)
}

func TestDeriveKey_SelfReferenceIsRejected(t *testing.T) {
	type node struct {
		next *node
	}
	n := &node{}
	n.next = n

	_, err := DeriveKey("p", "f", n)
	var kde *KeyDerivationError
	assert.ErrorAs(t, err, &kde)
}

func TestDeriveKey_UnserialisableArgument(t *testing.T) {
	_, err := DeriveKey("p", "f", "ok", make(chan int))
	require.Error(t, err)

	var kde *KeyDerivationError
	require.ErrorAs(t, err, &kde)
	assert.Equal(t, 1, kde.Index)
	assert.Equal(t, "chan int", kde.Type)

	_, err = DeriveKey("p", "f", map[string]any{"cb": func() {}})
	assert.ErrorAs(t, err, &kde)
}

func TestDeriveKey_EmptyPrefix(t *testing.T) {
	k, err := DeriveKey("", "f")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k, "cache:"))
	assert.Len(t, strings.TrimPrefix(k, "cache:"), 32)
}

func TestPrefixPattern(t *testing.T) {
	assert.Equal(t, "cache:finnhub_news:*", PrefixPattern("finnhub_news"))
}
