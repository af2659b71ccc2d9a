package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestParseHandleCSVWithHeader(t *testing.T) {
	data := []byte("username,name,bio,followers\nelonmusk,Elon,Mars,100\n@karpathy,Andrej,AI,200\n")

	records, err := ParseHandleCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "elonmusk", records[0].Handle)
	assert.Equal(t, "Elon", records[0].DisplayName)
	assert.Equal(t, "Mars", records[0].Bio)
	assert.Equal(t, "100", records[0].Followers)

	// Leading @ is stripped
	assert.Equal(t, "karpathy", records[1].Handle)
}

func TestParseHandleCSVHeaderless(t *testing.T) {
	data := []byte("elonmusk\nkarpathy\nsama\n")

	records, err := ParseHandleCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "elonmusk", records[0].Handle)
	assert.Equal(t, "sama", records[2].Handle)
}

func TestParseHandleCSVDeduplicates(t *testing.T) {
	data := []byte("handle\nelonmusk\nElonMusk\n@elonmusk\nkarpathy\n")

	records, err := ParseHandleCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "elonmusk", records[0].Handle)
	assert.Equal(t, "karpathy", records[1].Handle)
}

func TestParseHandleCSVTabDelimited(t *testing.T) {
	data := []byte("screen_name\tname\nelonmusk\tElon\n")

	records, err := ParseHandleCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "elonmusk", records[0].Handle)
	assert.Equal(t, "Elon", records[0].DisplayName)
}

func TestParseHandleCSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("handle\nelonmusk\n")...)

	records, err := ParseHandleCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "elonmusk", records[0].Handle)
}

func TestParseHandleCSVGBKEncoded(t *testing.T) {
	utf8Data := "username,bio\nelonmusk,火星计划\n"
	gbkData, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(utf8Data))
	require.NoError(t, err)

	records, err := ParseHandleCSV(gbkData)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "elonmusk", records[0].Handle)
	assert.Equal(t, "火星计划", records[0].Bio)
}

func TestParseHandleCSVEmpty(t *testing.T) {
	_, err := ParseHandleCSV([]byte(""))
	assert.Error(t, err)

	_, err = ParseHandleCSV([]byte("handle\n\n"))
	assert.Error(t, err)
}
