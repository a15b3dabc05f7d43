package ocr

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.fn(name, args)
}

// touchPNG creates the image pdftoppm would have written for the given prefix.
func touchPNG(args []string, page string) error {
	prefix := args[len(args)-1]
	return os.WriteFile(prefix+"-"+page+".png", []byte("png"), 0o600)
}

func TestNormalize(t *testing.T) {
	in := "Name:\t\tAda   Lovelace  \r\n-----\r\n\r\n\r\n\r\nTotal  42.00\n"
	assert.Equal(t, "Name: Ada Lovelace\n\nTotal 42.00", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestExtract_PDFTextLayerWithScannedPage(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("page one\f   \fpage three\f"), nil, nil
		case "pdftoppm":
			assert.Contains(t, args, "-f")
			return nil, nil, touchPNG(args, "2")
		case "tesseract":
			return []byte("scanned   two"), nil, nil
		}
		return nil, nil, errors.New("unexpected " + name)
	}}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, res.SourceType)
	require.Len(t, res.Pages, 3)
	assert.Equal(t, Page{Number: 1, Text: "page one", Method: "pdf-text"}, res.Pages[0])
	assert.Equal(t, "scanned two", res.Pages[1].Text)
	assert.Equal(t, "pdf-ocr", res.Pages[1].Method)
	assert.NoError(t, res.Pages[1].Err)
	assert.Equal(t, "page three", res.Pages[2].Text)
}

func TestExtract_PDFPageOCRFailureIsPageError(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("text\f\f"), nil, nil
		case "pdftoppm":
			return nil, []byte("bad page"), errors.New("exit 1")
		}
		return nil, nil, nil
	}}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), "doc.PDF")
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	assert.NoError(t, res.Pages[0].Err)
	assert.Error(t, res.Pages[1].Err)
}

func TestExtract_PDFWithoutTextLayerFallsBackToFullOCR(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, []byte("syntax error"), errors.New("exit 1")
		case "pdftoppm":
			if err := touchPNG(args, "1"); err != nil {
				return nil, nil, err
			}
			return nil, nil, touchPNG(args, "2")
		case "tesseract":
			return []byte("ocr text"), nil, nil
		}
		return nil, nil, nil
	}}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	for _, p := range res.Pages {
		assert.Equal(t, "ocr text", p.Text)
	}
}

func TestExtract_Image(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		assert.Equal(t, "tesseract", name)
		assert.Equal(t, []string{"photo.jpg", "stdout", "-l", "deu", "--tessdata-dir", "/td"}, args)
		return []byte("hallo"), nil, nil
	}}
	e := NewExtractor(Config{TesseractLang: "deu", TessdataDir: "/td"}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "hallo", res.Pages[0].Text)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		t.Fatal("runner must not be called")
		return nil, nil, nil
	}})
	_, err := e.Extract(context.Background(), "notes.docx")
	assert.Error(t, err)
}
