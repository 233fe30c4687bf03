package ocr

import (
	"math"
	"strconv"
	"strings"
)

// tsvConfColumn is the index of "conf" in tesseract's TSV output:
// level page_num block_num par_num line_num word_num left top width height conf text
const tsvConfColumn = 10

// MeanTSVConfidence returns the arithmetic mean (0..100) of the numeric per-token
// confidences in a tesseract TSV dump, plus how many values were averaged.
// The -1 placeholder tesseract emits for non-word rows and any non-numeric cell
// are excluded. With no numeric values the mean is 0.
func MeanTSVConfidence(tsv string) (float64, int) {
	var sum float64
	var n int
	for i, ln := range strings.Split(tsv, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) <= tsvConfColumn {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[tsvConfColumn]), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
