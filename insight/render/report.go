package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// ReportMeta is the YAML front matter of a saved report.
type ReportMeta struct {
	ID          string    `yaml:"id"`
	ReportType  string    `yaml:"report_type"`
	Question    string    `yaml:"question"`
	GeneratedAt time.Time `yaml:"generated_at"`
}

// ReportWriter saves markdown reports with front matter.
type ReportWriter struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewReportWriter writes reports under <outputDir>/reports.
func NewReportWriter(outputDir string, logger zerolog.Logger) *ReportWriter {
	return &ReportWriter{
		dir:    filepath.Join(outputDir, "reports"),
		now:    time.Now,
		logger: logger.With().Str("component", "reports").Logger(),
	}
}

// Save writes body and returns the file path.
func (w *ReportWriter) Save(ctx context.Context, reportType, question, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := w.now()
	meta := ReportMeta{
		ID:          uuid.NewString(),
		ReportType:  reportType,
		Question:    question,
		GeneratedAt: now.UTC(),
	}
	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterDelim + "\n\n")
	buf.WriteString(strings.TrimSpace(body))
	buf.WriteString("\n")

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	name := fmt.Sprintf("report_%s_%s_%s.md", reportType, now.Format("20060102_150405"), meta.ID[:8])
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	w.logger.Info().Str("path", path).Str("report_type", reportType).Msg("Report saved")
	return path, nil
}

// ReadReport parses a report written by Save.
func ReadReport(path string) (ReportMeta, string, error) {
	var meta ReportMeta

	data, err := os.ReadFile(path)
	if err != nil {
		return meta, "", err
	}

	content := string(data)
	if !strings.HasPrefix(content, frontMatterDelim+"\n") {
		return meta, content, nil
	}
	rest := content[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		return meta, "", fmt.Errorf("unterminated front matter in %s", path)
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, "", fmt.Errorf("decode front matter: %w", err)
	}
	body := strings.TrimSpace(rest[end+len(frontMatterDelim)+2:])
	return meta, body, nil
}
