package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestParseCommaSeparated(t *testing.T) {
	input := "id,name,category,unit_cost,retail_price,quantity,supplier\n" +
		"MED001,Paracetamol 500mg,Analgesic,8.00,10.00,100,Kimia Farma\n" +
		"MED002,Vitamin C,Supplement,1.5,2.50,40,\n"

	result, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Empty(t, result.Skipped)

	first := result.Items[0]
	assert.Equal(t, "MED001", first.ID)
	assert.Equal(t, int64(800), first.UnitCostCents)
	assert.Equal(t, int64(1000), first.RetailPriceCents)
	assert.Equal(t, 100, first.Quantity)
	assert.Equal(t, "Kimia Farma", first.Supplier)
	assert.Equal(t, int64(150), result.Items[1].UnitCostCents)
}

func TestParseSemicolonWithAliasesAndPreamble(t *testing.T) {
	input := "Stock export;;;\n" +
		"\n" +
		"item_id;name;type;unit_price;price;qty\n" +
		"MED010;Amoxicillin;Antibiotic;12,40;15,00;12\n" +
		"MED011;Broken;Antibiotic;abc;15,00;12\n" +
		"MED010;Again;Antibiotic;1,00;2,00;1\n"

	result, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(1240), result.Items[0].UnitCostCents)
	assert.Equal(t, "Antibiotic", result.Items[0].Category)

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 5, result.Skipped[0].Line)
	assert.Contains(t, result.Skipped[1].Reason, "duplicate id MED010")
}

func TestParseLegacyEncodings(t *testing.T) {
	text := "id,name,unit_cost,retail_price,quantity\nMED020,Crème apaisante,3.00,4.50,5\n"

	latin, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)
	result, err := Parse(strings.NewReader(latin))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Crème apaisante", result.Items[0].Name)

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(text)
	require.NoError(t, err)
	result, err = Parse(strings.NewReader(utf16))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Crème apaisante", result.Items[0].Name)

	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(text)...)
	result, err = Parse(bytes.NewReader(withBOM))
	require.NoError(t, err)
	assert.Equal(t, "MED020", result.Items[0].ID)
}

func TestParseWithoutHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b,c\n1,2,3\n"))
	require.ErrorIs(t, err, ErrNoHeader)
}
