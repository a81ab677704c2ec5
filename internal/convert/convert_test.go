package convert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForExtensionDispatch(t *testing.T) {
	require.IsType(t, jsonConverter{}, ForExtension(".json", Options{}))
	require.IsType(t, csvConverter{}, ForExtension("CSV", Options{}))
	require.IsType(t, xlsxConverter{}, ForExtension("xlsx", Options{}))
	require.IsType(t, pptxConverter{}, ForExtension("pptx", Options{}))
	require.IsType(t, pdfConverter{}, ForExtension("pdf", Options{}))
	require.IsType(t, docxConverter{}, ForExtension("docx", Options{}))
	require.IsType(t, htmlConverter{}, ForExtension("html", Options{}))
	require.IsType(t, verbatimConverter{}, ForExtension("txt", Options{}))
}

func TestAllowListed(t *testing.T) {
	allow := []string{"txt", ".md", "PDF"}
	require.True(t, AllowListed("txt", allow))
	require.True(t, AllowListed(".md", allow))
	require.True(t, AllowListed("pdf", allow))
	require.False(t, AllowListed("exe", allow))
}

func TestVerbatimConverter(t *testing.T) {
	out, err := verbatimConverter{}.Convert([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestJSONConverterProjectsSelector(t *testing.T) {
	data := []byte(`{"title": "hello", "body": {"text": "world"}}`)
	out, err := jsonConverter{selector: "body.text"}.Convert(data)
	require.NoError(t, err)
	require.Equal(t, "world", out)
}

func TestJSONConverterRejectsInvalidJSON(t *testing.T) {
	_, err := jsonConverter{}.Convert([]byte("not json"))
	require.Error(t, err)
}

func TestCSVConverterRendersRecords(t *testing.T) {
	out, err := csvConverter{separator: ','}.Convert([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "a | b\n1 | 2\n", out)
}
