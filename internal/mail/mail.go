// Package mail reads invitation emails exported to a folder on disk.
package mail

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/model"
)

// Query selects messages from a source.
type Query struct {
	Folder string
	// Max bounds the number of messages returned; 0 means no bound.
	Max int
	// Filter keeps messages whose ID, sender or subject contains it,
	// ignoring case.
	Filter string
}

// Source hands raw messages to the pipeline.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]model.Email, error)
}

// FolderSource reads one message per file from <root>/<folder>. Supported
// files are RFC 5322 messages (.eml), plain text (.txt, optional headers)
// and JSON objects (.json).
type FolderSource struct {
	root string
}

// NewFolderSource returns a source rooted at dir.
func NewFolderSource(root string) *FolderSource {
	return &FolderSource{root: root}
}

// Fetch returns matching messages in file name order.
func (s *FolderSource) Fetch(ctx context.Context, q Query) ([]model.Email, error) {
	dir := filepath.Join(s.root, q.Folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "mail: read folder %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".eml", ".txt", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []model.Email
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "mail: fetch")
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "mail: read %s", name)
		}
		em, err := Parse(name, raw)
		if err != nil {
			zap.L().Warn("mail: skipping unreadable message", zap.String("file", name), zap.Error(err))
			continue
		}
		em.Folder = q.Folder
		if !Matches(em, q.Filter) {
			continue
		}
		out = append(out, em)
		if q.Max > 0 && len(out) >= q.Max {
			break
		}
	}
	return out, nil
}

// Matches reports whether the message's identifying metadata contains filter.
func Matches(em model.Email, filter string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return true
	}
	for _, v := range []string{em.ID, em.From, em.Subject} {
		if strings.Contains(strings.ToLower(v), f) {
			return true
		}
	}
	return false
}

// Parse decodes one message file. The file name, minus extension, is the
// message ID unless the message carries its own.
func Parse(name string, raw []byte) (model.Email, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return parseJSON(base, raw)
	case ".eml":
		return parseRFC822(base, raw)
	default:
		if looksLikeHeaders(raw) {
			return parseRFC822(base, raw)
		}
		return parsePlain(base, raw), nil
	}
}

func parseJSON(id string, raw []byte) (model.Email, error) {
	var em model.Email
	if err := json.Unmarshal(raw, &em); err != nil {
		return model.Email{}, eris.Wrap(err, "mail: decode json")
	}
	if em.ID == "" {
		em.ID = id
	}
	if strings.TrimSpace(em.Body) == "" && strings.TrimSpace(em.Subject) == "" {
		return model.Email{}, eris.New("mail: empty message")
	}
	return em, nil
}

func parseRFC822(id string, raw []byte) (model.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return model.Email{}, eris.Wrap(err, "mail: read message")
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}
	from, err := dec.DecodeHeader(msg.Header.Get("From"))
	if err != nil {
		from = msg.Header.Get("From")
	}

	em := model.Email{ID: id, From: from, Subject: strings.TrimSpace(subject)}
	if mid := strings.Trim(msg.Header.Get("Message-Id"), "<> "); mid != "" {
		em.ID = mid
	}
	if d, err := msg.Header.Date(); err == nil {
		em.Date = d.UTC()
	}

	body, err := readBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return model.Email{}, err
	}
	em.Body = strings.TrimSpace(body)
	return em, nil
}

// readBody returns the text/plain content, descending into multipart
// containers. HTML-only messages fall back to their raw markup.
func readBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		var fallback string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", eris.Wrap(err, "mail: read multipart")
			}
			text, err := readBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if pt == "text/plain" || pt == "" || strings.HasPrefix(pt, "multipart/") {
				if strings.TrimSpace(text) != "" {
					return text, nil
				}
			} else if fallback == "" {
				fallback = text
			}
		}
		return fallback, nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "mail: decode body")
	}
	return string(b), nil
}

func looksLikeHeaders(raw []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	if !sc.Scan() {
		return false
	}
	line := sc.Text()
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return false
	}
	switch strings.ToLower(line[:i]) {
	case "from", "to", "subject", "date", "message-id", "mime-version", "return-path", "received":
		return true
	}
	return false
}

// parsePlain treats the first non-empty line as the subject.
func parsePlain(id string, raw []byte) model.Email {
	text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	subject, body, _ := strings.Cut(text, "\n")
	return model.Email{ID: id, Subject: strings.TrimSpace(subject), Body: strings.TrimSpace(body)}
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns
// decode with the standard encoding.
type newlineStripper struct {
	r io.Reader
}

func (n *newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		j := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
