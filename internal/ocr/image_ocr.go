package ocr

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"strconv"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	gray, cleanup, err := grayscaleCopy(path, e.cfg.TempDir)
	if err != nil {
		return ExtractionResult{Method: "image-ocr"}, fmt.Errorf("grayscale: %w", err)
	}
	defer cleanup()

	txt, warn, err := e.tesseractOCR(ctx, gray)
	if err != nil {
		return ExtractionResult{Method: "image-ocr", Warnings: warn}, err
	}
	conf, n, warn2, err := e.tesseractTSVConfidence(ctx, gray)
	warn = append(warn, warn2...)
	if err != nil {
		return ExtractionResult{Method: "image-ocr", Warnings: warn}, err
	}
	if n == 0 {
		warn = append(warn, "tesseract reported no numeric confidences")
	}

	return ExtractionResult{
		Text:       Normalize(txt),
		Confidence: conf,
		Tokens:     n,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}, nil
}

// grayscaleCopy decodes a PNG/JPEG and writes an 8-bit grayscale PNG next to the
// other temp artifacts. cleanup removes it and is always safe to call.
func grayscaleCopy(path, tmpDir string) (string, func(), error) {
	noop := func() {}
	in, err := os.Open(path)
	if err != nil {
		return "", noop, err
	}
	defer in.Close()

	src, _, err := image.Decode(in)
	if err != nil {
		return "", noop, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, src, b.Min, draw.Src)

	out, err := os.CreateTemp(tmpDir, "triage-gray-*.png")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.Remove(out.Name()) }
	if err := png.Encode(out, gray); err != nil {
		_ = out.Close()
		cleanup()
		return "", noop, fmt.Errorf("encode grayscale: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return out.Name(), cleanup, nil
}

func (e *Extractor) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, e.baseArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns the mean word conf in 0..100.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, int, []string, error) {
	args := append(e.baseArgs(path), "tsv")
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return 0, 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	mean, n := MeanTSVConfidence(string(out))
	return mean, n, nil, nil
}
