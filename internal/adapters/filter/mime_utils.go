package filter

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/mikey/phish-scanner/internal/core"
)

// headerField is one header line to add to a forwarded message.
type headerField struct {
	Name  string
	Value string
}

// parseMessage extracts the headers and bodies the scanner needs from a raw
// RFC 5322 message. Encoded words in headers are decoded.
func parseMessage(raw []byte) (*core.ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	email := &core.ParsedEmail{
		From:            env.GetHeader("From"),
		ReplyTo:         env.GetHeader("Reply-To"),
		Subject:         env.GetHeader("Subject"),
		MessageID:       env.GetHeader("Message-Id"),
		Date:            env.GetHeader("Date"),
		TextBody:        env.Text,
		HTMLBody:        env.HTML,
		AttachmentCount: len(env.Attachments),
		RawSize:         len(raw),
	}

	if addrs, err := env.AddressList("To"); err == nil {
		for _, a := range addrs {
			email.To = append(email.To, a.Address)
		}
	} else if to := env.GetHeader("To"); to != "" {
		for _, a := range strings.Split(to, ",") {
			if a = strings.TrimSpace(a); a != "" {
				email.To = append(email.To, a)
			}
		}
	}

	return email, nil
}

// rewriteMessage prepends fields to the header block of raw, drops any
// existing headers with the same names and, when subjectPrefix is set,
// prefixes the Subject. The body is copied unchanged.
func rewriteMessage(raw []byte, fields []headerField, subjectPrefix string) []byte {
	head, sep, body := splitMessage(raw)

	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[strings.ToLower(f.Name)] = true
	}

	var out bytes.Buffer
	out.Grow(len(raw) + 256)
	for _, f := range fields {
		fmt.Fprintf(&out, "%s: %s\r\n", f.Name, sanitizeHeaderValue(f.Value))
	}

	subjectSeen := false
	for _, h := range splitHeaderFields(head) {
		name, _, _ := strings.Cut(h, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if drop[name] {
			continue
		}
		if name == "subject" && subjectPrefix != "" {
			subjectSeen = true
			out.WriteString(prefixSubject(h, subjectPrefix))
			continue
		}
		out.WriteString(h)
	}
	if subjectPrefix != "" && !subjectSeen {
		fmt.Fprintf(&out, "Subject: %s\r\n", strings.TrimSpace(subjectPrefix))
	}

	out.WriteString(sep)
	out.Write(body)
	return out.Bytes()
}

// splitMessage separates the header block (including its last line break)
// from the body.
func splitMessage(raw []byte) (head string, sep string, body []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return string(raw[:i+2]), "\r\n", raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return string(raw[:i+1]), "\n", raw[i+2:]
	}
	return string(raw), "\r\n", nil
}

// splitHeaderFields splits a header block into fields, keeping folded
// continuation lines with their field.
func splitHeaderFields(head string) []string {
	var fields []string
	for _, line := range strings.SplitAfter(head, "\n") {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1] += line
			continue
		}
		fields = append(fields, line)
	}
	return fields
}

func prefixSubject(field, prefix string) string {
	value := field[strings.Index(field, ":")+1:]
	value = strings.TrimSpace(strings.NewReplacer("\r\n", "", "\n", "").Replace(value))

	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		decoded = value
	}
	if strings.HasPrefix(decoded, prefix) {
		return field
	}
	return "Subject: " + mime.QEncoding.Encode("utf-8", prefix+decoded) + "\r\n"
}

// sanitizeHeaderValue keeps a generated header on a single line.
func sanitizeHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
