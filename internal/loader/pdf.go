package loader

import (
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// pdfInfoKeys are document info entries copied onto every page.
var pdfInfoKeys = map[string]string{
	"Producer":     "producer",
	"Creator":      "creator",
	"CreationDate": "creationdate",
	"ModDate":      "moddate",
	"Title":        "title",
	"Author":       "author",
}

// loadPDF returns one document per page. Pages are numbered from 0.
func loadPDF(path string) (docs []Document, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// The pdf package panics on some malformed streams
	defer func() {
		if rec := recover(); rec != nil {
			docs, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	info := map[string]string{}
	if infoDict := r.Trailer().Key("Info"); !infoDict.IsNull() {
		for key, meta := range pdfInfoKeys {
			if v := infoDict.Key(key); !v.IsNull() {
				info[meta] = v.Text()
			}
		}
	}

	total := r.NumPage()
	docs = make([]Document, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		md := make(map[string]string, len(info)+3)
		for k, v := range info {
			md[k] = v
		}
		md[MetaSource] = path
		md[MetaPage] = strconv.Itoa(i - 1)
		md[MetaTotalPages] = strconv.Itoa(total)

		docs = append(docs, Document{Content: text, Metadata: md})
	}
	return docs, nil
}
