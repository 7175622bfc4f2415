// Package extract validates uploaded resume files and pulls plain text out of them.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nguyenthenguyen/docx"
)

const (
	// BinarySampleSize is the number of bytes inspected by IsBinary
	BinarySampleSize = 1000
	// BinaryThreshold is the share of control characters that marks content as binary
	BinaryThreshold = 0.3
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

var ErrUnsupported = errors.New("unsupported file type")

// accepted maps an extension to the content types it may sniff as.
// A DOCX header alone often only identifies as a zip archive.
var accepted = map[string][]string{
	".pdf":  {MIMEPDF},
	".docx": {MIMEDOCX, "application/zip"},
	".txt":  {MIMEText},
}

// Detect checks that the file name and its leading bytes agree on a supported
// type and returns the canonical MIME type for storage.
func Detect(fileName string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	want, ok := accepted[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	mt := mimetype.Detect(head)
	for m := mt; m != nil; m = m.Parent() {
		for _, w := range want {
			if m.Is(w) {
				return want[0], nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s content in %s file", ErrUnsupported, mt.String(), ext)
}

// Text extracts plain text from a stored resume. The result is always valid
// UTF-8 without NUL bytes so it can be stored in a Postgres text column.
func Text(ctx context.Context, path string) (string, error) {
	text, err := rawText(ctx, path)
	if err != nil {
		return "", err
	}
	return Clean(text), nil
}

func rawText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		content := string(data)
		if IsBinary(content) {
			return "", fmt.Errorf("text file %s looks binary", filepath.Base(path))
		}
		return strings.TrimSpace(content), nil
	case ".pdf":
		return extractPDF(ctx, path)
	case ".docx":
		return extractDOCX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// extractPDF shells out to pdftotext from poppler-utils
func extractPDF(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdf extraction requires 'pdftotext' (install poppler-utils): %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	tabOrBreak   = regexp.MustCompile(`<w:(tab|br)/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

func extractDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	return DocumentXMLToText(r.Editable().GetContent()), nil
}

// DocumentXMLToText flattens WordprocessingML body markup into plain text
func DocumentXMLToText(content string) string {
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = tabOrBreak.ReplaceAllString(content, " ")
	content = xmlTag.ReplaceAllString(content, "")
	content = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'").Replace(content)
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// Clean drops invalid UTF-8 sequences and NUL bytes and trims surrounding space
func Clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// IsBinary reports whether content looks like a binary document rather than text
func IsBinary(content string) bool {
	if len(content) == 0 {
		return false
	}
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}
	if strings.HasPrefix(content, "PK") {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
