package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleQuantity(t *testing.T) {
	q, err := Parse("100 kg")
	require.NoError(t, err)
	assertQuantity(t, q, "100", "kg")
	assert.Equal(t, "100 kg", q.String())
}

func TestParse_ThousandsSeparators(t *testing.T) {
	q, err := Parse("1,234.5 mt")
	require.NoError(t, err)
	assertQuantity(t, q, "1234.5", "mt")
	assert.Equal(t, "1,234.5 mt", q.OriginalText())
}

func TestParse_PercentMayHugNumber(t *testing.T) {
	q, err := Parse("85%")
	require.NoError(t, err)
	assertQuantity(t, q, "85", "%")
}

func TestParse_NegativeValue(t *testing.T) {
	q, err := Parse("-3 units")
	require.NoError(t, err)
	assertQuantity(t, q, "-3", "units")
}

func TestParse_CompoundUnit(t *testing.T) {
	q, err := Parse("0.85 kg / unit")
	require.NoError(t, err)
	assertQuantity(t, q, "0.85", "kg / unit")
}

func TestParse_MissingSpaceBeforeUnit(t *testing.T) {
	_, err := Parse("100kg")
	require.Error(t, err)
	assert.True(t, IsBadLiteralError(err))
	assert.Contains(t, err.Error(), "100kg")
}

func TestParse_MissingUnit(t *testing.T) {
	_, err := Parse("42")
	require.Error(t, err)
	assert.True(t, IsBadLiteralError(err))
}

func TestParse_NotANumber(t *testing.T) {
	_, err := Parse("lots of kg")
	require.Error(t, err)
	assert.True(t, IsBadLiteralError(err))
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
	assert.True(t, IsBadLiteralError(err))
}

func TestFormat_ThousandsSeparators(t *testing.T) {
	q := New(MustDecimal("1234567.25"), "kg")
	assert.Equal(t, "1,234,567.25 kg", Format(q))
}

func TestFormat_PercentHugsNumber(t *testing.T) {
	q := FromInt64(85, "%")
	assert.Equal(t, "85%", Format(q))
}

func TestFormat_NoFractionForIntegers(t *testing.T) {
	q := FromInt64(1000, "units")
	assert.Equal(t, "1,000 units", Format(q))
}

func TestQuantity_StringPrefersOriginalText(t *testing.T) {
	q := MustParse("1,000 kg")
	assert.Equal(t, "1,000 kg", q.String())
}

func TestQuantity_ValueIsACopy(t *testing.T) {
	q := FromInt64(10, "kg")
	v := q.Value()
	v.SetInt64(99)
	assertQuantity(t, q, "10", "kg")
}

func TestQuantity_HasEquipmentUnits(t *testing.T) {
	assert.True(t, FromInt64(1, "units").HasEquipmentUnits())
	assert.True(t, FromInt64(1, "unit").HasEquipmentUnits())
	assert.False(t, FromInt64(1, "kg").HasEquipmentUnits())
	assert.False(t, FromInt64(1, "kg / unit").HasEquipmentUnits())
}

func TestQuantity_IsPercent(t *testing.T) {
	assert.True(t, FromInt64(5, "%").IsPercent())
	assert.False(t, FromInt64(5, "kg").IsPercent())
}
