package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

// PDFExtractor reads embedded page text. The ledongthuc reader runs first; when it
// cannot open the file the pdfcpu content streams are parsed instead.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

func (x *PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{SourceType: constants.PDF, Method: "pdf-text"}

	pages, total, err := readPlainTextPages(ctx, path)
	if err != nil {
		x.logger.Warn("pdf text reader failed, trying content streams", "path", path, "error", err)
		var fbErr error
		pages, total, fbErr = readContentStreamPages(ctx, path)
		if fbErr != nil {
			return res, fmt.Errorf("pdf: %v; content streams: %w", err, fbErr)
		}
		res.Method = "pdf-content-stream"
	}

	res.Text = strings.Join(pages, " ")
	res.Pages = total
	res.Duration = time.Since(start)
	x.logger.Debug("pdf text extracted", "path", path, "pages", total, "pages_with_text", len(pages), "method", res.Method)
	return res, nil
}

// readPlainTextPages returns the non-empty page texts in page order.
func readPlainTextPages(ctx context.Context, path string) (texts []string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	total = r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			// a broken page yields no text; the rest of the document still counts
			continue
		}
		if strings.TrimSpace(txt) == "" {
			continue
		}
		texts = append(texts, txt)
	}
	return texts, total, nil
}

func readContentStreamPages(ctx context.Context, path string) (texts []string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	pc, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	total = pc.PageCount
	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		r, err := pdfcpu.ExtractPageContent(pc, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if txt := showTextOperands(data); strings.TrimSpace(txt) != "" {
			texts = append(texts, txt)
		}
	}
	return texts, total, nil
}

// showTextOperands collects the string operands of the text-showing operators
// (Tj, TJ, ' and ") from a decoded content stream. Each operator's text becomes a line.
func showTextOperands(stream []byte) string {
	var out []string
	var pending strings.Builder
	inText := false

	for i := 0; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			pending.WriteString(s)
			i = next
		case c == '<' && i+1 < len(stream) && stream[i+1] != '<':
			// hex strings are glyph ids without a cmap; nothing readable to keep
			for i < len(stream) && stream[i] != '>' {
				i++
			}
		case isOperatorStart(c):
			j := i
			for j < len(stream) && !isDelimiter(stream[j]) {
				j++
			}
			op := string(stream[i:j])
			switch op {
			case "BT":
				inText = true
			case "ET":
				inText = false
			case "Tj", "TJ", "'", "\"":
				if inText && pending.Len() > 0 {
					out = append(out, pending.String())
				}
			}
			pending.Reset()
			i = j - 1
		}
	}
	return strings.Join(out, "\n")
}

// readLiteral decodes the balanced string literal starting at stream[start] == '('.
func readLiteral(stream []byte, start int) (string, int) {
	var b bytes.Buffer
	depth := 0
	for i := start; i < len(stream); i++ {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 >= len(stream) {
				return b.String(), i
			}
			i++
			switch e := stream[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(stream) && stream[i+1] >= '0' && stream[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(stream[i]-'0')
					}
					b.WriteByte(byte(v))
					continue
				}
				b.WriteByte(e)
			}
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), len(stream) - 1
}

func isOperatorStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"'
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
