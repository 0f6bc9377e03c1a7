package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(strings.ToUpper(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, got)

	_, err = ParseFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: xml")
}

func TestFormatsAndExtensions(t *testing.T) {
	assert.Equal(t, []string{"html", "json", "junit", "markdown", "sarif"}, Formats())
	assert.Equal(t, ".html", Extension(FormatHTML))
	assert.Equal(t, ".xml", Extension(FormatJUnit))
	assert.Equal(t, "", Extension("nope"))
}

func TestNew_WritesEveryFormatToFile(t *testing.T) {
	dir := t.TempDir()
	for _, f := range Formats() {
		t.Run(f, func(t *testing.T) {
			path := filepath.Join(dir, "report"+Extension(f))
			r, err := New(f, path, Options{Lang: "en", ToolVersion: "1.1.0"})
			require.NoError(t, err)

			// White box check: file output is an *os.File.
			switch rep := r.(type) {
			case *documentReporter:
				_, ok := rep.writer.(*os.File)
				assert.True(t, ok)
			case *SARIFReporter:
				_, ok := rep.writer.(*os.File)
				assert.True(t, ok)
			}

			require.NoError(t, r.Write(sampleResult()))
			require.NoError(t, r.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
}

func TestNew_Stdout(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := New("json", path, Options{})
		require.NoError(t, err)
		doc, ok := r.(*documentReporter)
		require.True(t, ok)
		nwc, ok := doc.writer.(*nopWriteCloser)
		require.True(t, ok, "stdout must be wrapped so Close is a no-op")
		assert.Equal(t, os.Stdout, nwc.Writer)
		assert.NoError(t, r.Close())
	}
}

func TestNew_Failures(t *testing.T) {
	t.Run("unsupported format creates no file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		r, err := New("text", path, Options{})
		assert.Nil(t, r)
		require.Error(t, err)
		assert.NoFileExists(t, path)
	})

	t.Run("file creation", func(t *testing.T) {
		r, err := New("html", t.TempDir(), Options{})
		assert.Nil(t, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create output file")
	})
}

func TestDocumentReporter_SingleResult(t *testing.T) {
	w := &failingWriteCloser{}
	r := NewWithWriter(FormatJSON, w, Options{})
	require.NoError(t, r.Write(sampleResult()))
	assert.ErrorIs(t, r.Write(sampleResult()), ErrSingleResult)
	require.NoError(t, r.Close())
	assert.Equal(t, 1, w.closed)

	parsed, err := ParseJSON(w.buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "scan-1", parsed.ScanID)
}

func TestDocumentReporter_Errors(t *testing.T) {
	r := NewWithWriter(FormatHTML, &failingWriteCloser{failWrite: true}, Options{})
	err := r.Write(sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write report")

	r = NewWithWriter(FormatMarkdown, &failingWriteCloser{failClose: true}, Options{})
	assert.Error(t, r.Write(nil))
	assert.Error(t, r.Close())
}

func TestNopWriteCloser(t *testing.T) {
	buf := new(bytes.Buffer)
	nwc := &nopWriteCloser{buf}

	_, err := nwc.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, nwc.Close(), "Close should always return nil")

	// Writes still succeed after Close.
	_, _ = nwc.Write([]byte(" world"))
	assert.Equal(t, "hello world", buf.String())
}
