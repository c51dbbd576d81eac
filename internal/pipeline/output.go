package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/model"
)

// ArtifactName derives the output file name from the candidate and company.
// A short content hash suffix keeps two emails for the same pair apart.
func ArtifactName(rec *model.InterviewRecord) string {
	var parts []string
	for _, v := range []string{rec.CandidateName, rec.CompanyName} {
		if t := sanitize(v); t != "" {
			parts = append(parts, t)
		}
	}
	stem := "interview"
	if len(parts) > 0 {
		stem = strings.Join(parts, "_")
	}
	suffix := rec.ContentHash
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		return stem + "_prep.txt"
	}
	return stem + "_prep_" + suffix + ".txt"
}

func sanitize(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// WriteArtifact renders doc into dir, replacing any earlier copy. The file
// appears atomically so readers never see a partial document.
func WriteArtifact(dir string, rec *model.InterviewRecord, doc *model.Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}
	path := filepath.Join(dir, ArtifactName(rec))

	tmp, err := os.CreateTemp(dir, ".prep-*.tmp")
	if err != nil {
		return "", eris.Wrap(err, "pipeline: create temp artifact")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "pipeline: chmod artifact")
	}
	if _, err := tmp.WriteString(doc.Render()); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "pipeline: write artifact")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "pipeline: close artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", eris.Wrapf(err, "pipeline: move artifact to %s", path)
	}
	return path, nil
}
