package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

const docxBodyPart = "word/document.xml"

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct {
	logger *slog.Logger
}

func NewDOCXExtractor(logger *slog.Logger) *DOCXExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DOCXExtractor{logger: logger}
}

func (x *DOCXExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{SourceType: constants.DOCX, Method: "docx-xml", Pages: 1}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return res, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return res, fmt.Errorf("docx: %s not found", docxBodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return res, fmt.Errorf("open %s: %w", docxBodyPart, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(ctx, rc)
	if err != nil {
		return res, err
	}

	res.Text = strings.Join(paragraphs, " ")
	res.Duration = time.Since(start)
	x.logger.Debug("docx text extracted", "path", path, "paragraphs", len(paragraphs))
	return res, nil
}

// docxParagraphs returns the text of every w:p in document order, empty ones included.
// Runs are concatenated; w:tab and w:br become a space. Paragraphs nested in text
// boxes are emitted when they close, before their enclosing paragraph.
func docxParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		open   []*strings.Builder
		inText bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab", "br", "cr":
				if n := len(open); n > 0 {
					open[n-1].WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if n := len(open); n > 0 {
					out = append(out, open[n-1].String())
					open = open[:n-1]
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && len(open) > 0 {
				open[len(open)-1].Write(t)
			}
		}
	}
	return out, nil
}
