package editsession

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

func TestTransitionsRoundTrip(t *testing.T) {
	var tr Transitions
	tr.Reset(invoice.VariantDuplicate)
	require.False(t, tr.Toggled())

	next, changed, err := tr.ToggleReturn(true, invoice.VariantDuplicate)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, invoice.VariantReturnDuplicate, next)

	next, changed, err = tr.ToggleReturn(true, next)
	require.NoError(t, err)
	require.False(t, changed)

	next, changed, err = tr.ToggleReturn(false, next)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, invoice.VariantDuplicate, next)
}

func TestTransitionsResetFromReturnVariant(t *testing.T) {
	var tr Transitions
	tr.Reset(invoice.VariantReturnTriplicate)
	require.True(t, tr.Toggled())

	next, changed, err := tr.ToggleReturn(false, invoice.VariantReturnTriplicate)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, invoice.VariantTriplicate, next)
}

func TestTransitionsSelectForgetsOriginal(t *testing.T) {
	var tr Transitions
	tr.Reset(invoice.VariantTriplicate)
	_, _, err := tr.ToggleReturn(true, invoice.VariantTriplicate)
	require.NoError(t, err)

	next, changed := tr.Select(invoice.VariantSummarized, invoice.VariantReturnTriplicate)
	require.True(t, changed)
	require.Equal(t, invoice.VariantSummarized, next)
	require.False(t, tr.Toggled())

	_, _, err = tr.ToggleReturn(true, invoice.VariantSummarized)
	require.ErrorIs(t, err, ErrNoReturnVariant)
}

func TestTransitionsSelectReturnVariantStartsToggled(t *testing.T) {
	var tr Transitions
	tr.Reset(invoice.VariantTriplicate)

	next, changed := tr.Select(invoice.VariantReturnDuplicate, invoice.VariantTriplicate)
	require.True(t, changed)
	require.Equal(t, invoice.VariantReturnDuplicate, next)
	require.True(t, tr.Toggled())

	next, changed, err := tr.ToggleReturn(false, next)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, invoice.VariantDuplicate, next)

	next, changed, err = tr.ToggleReturn(true, next)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, invoice.VariantReturnDuplicate, next)
}
