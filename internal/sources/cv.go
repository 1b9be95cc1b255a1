package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/ai"
	"github.com/spigell/profile-fusion/internal/profile"
)

const (
	defaultMaxCVBytes = 10 << 20
	docxBody          = "word/document.xml"
)

// CVAdapter reads a resume document and lets the model structure it.
type CVAdapter struct {
	extractor ai.Extractor
	maxBytes  int64
	logger    *zap.Logger
}

func NewCVAdapter(extractor ai.Extractor, maxBytes int64, log *zap.Logger) *CVAdapter {
	if maxBytes <= 0 {
		maxBytes = defaultMaxCVBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CVAdapter{extractor: extractor, maxBytes: maxBytes, logger: log}
}

func (a *CVAdapter) Platform() profile.Platform { return profile.PlatformCV }

func (a *CVAdapter) Extract(ctx context.Context, req Request) (profile.SourceProfile, error) {
	cvReq, ok := req.(CVRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected request %T", req)
	}
	if a.extractor == nil {
		return nil, errors.New("cv extraction needs a configured language model")
	}

	name, data, err := a.load(cvReq)
	if err != nil {
		return nil, err
	}

	text, err := ParseDocument(name, data)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("cv text extracted", zap.String("file", name), zap.Int("length", len(text)))

	cv, err := a.extractor.ExtractCV(ctx, text)
	if err != nil {
		return nil, err
	}
	cv.Extras.FileName = name

	return cv, nil
}

func (a *CVAdapter) load(req CVRequest) (string, []byte, error) {
	if len(req.Data) > 0 {
		name := filepath.Base(strings.TrimSpace(req.Name))
		if name == "" || name == "." {
			return "", nil, errors.New("uploaded cv needs a file name")
		}
		if int64(len(req.Data)) > a.maxBytes {
			return "", nil, fmt.Errorf("cv is %d bytes, limit is %d", len(req.Data), a.maxBytes)
		}
		return name, req.Data, nil
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		return "", nil, errors.New("cv path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("stat cv: %w", err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("cv path %q is a directory", path)
	}
	if info.Size() > a.maxBytes {
		return "", nil, fmt.Errorf("cv is %d bytes, limit is %d", info.Size(), a.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read cv: %w", err)
	}
	return filepath.Base(path), data, nil
}

// ParseDocument returns the plain text of a document; name selects the format.
func ParseDocument(name string, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		text, err = readPDF(data)
	case ".docx":
		text, err = readDOCX(data)
	case ".txt", ".md":
		text = string(data)
	default:
		return "", fmt.Errorf("unsupported cv format %q", ext)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("cv contains no text")
	}

	return text, nil
}

func readPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}

func readDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range archive.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		defer rc.Close()
		return docxText(rc)
	}

	return "", fmt.Errorf("docx has no %s", docxBody)
}

// docxText collects w:t runs, turning paragraphs and breaks into newlines.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return b.String(), nil
}
