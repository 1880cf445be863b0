package gmail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
)

// codePattern matches a word-bounded run of 5 to 8 digits. First match in
// document order wins; most OTP mail places the code before any footer or
// legal boilerplate. This is a heuristic, not a guarantee.
var codePattern = regexp.MustCompile(`\b\d{5,8}\b`)

// knownServices are senders whose name we surface next to a captured code.
var knownServices = []string{
	"Telegram", "Google", "WhatsApp", "Amazon", "Facebook",
	"Instagram", "Apple", "Microsoft", "Netflix",
}

// ExtractCode returns the first 5-8 digit run in text. The second return
// value reports whether a code was found.
func ExtractCode(text string) (string, bool) {
	code := codePattern.FindString(text)
	return code, code != ""
}

// ServiceName guesses which service sent the message by scanning the body
// for known sender names. Returns "Unknown" when nothing matches.
func ServiceName(text string) string {
	lower := strings.ToLower(text)
	for _, s := range knownServices {
		if strings.Contains(lower, strings.ToLower(s)) {
			return s
		}
	}
	return "Unknown"
}

// ExtractText decodes a raw RFC-822 message into plain text. Multipart
// messages yield the first text/plain part; single-part messages decode the
// body directly. Malformed or non-decodable input yields empty text, never
// an error.
func ExtractText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return firstPlainPart(msg.Body, params["boundary"])
	}
	return decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
}

// firstPlainPart walks a multipart body, descending into nested multiparts,
// and returns the first decodable text/plain part.
func firstPlainPart(body io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}

	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			return ""
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if text := firstPlainPart(part, params["boundary"]); text != "" {
				return text
			}
			continue
		}

		if mediaType == "text/plain" {
			return decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		}
	}
}

func decodeBody(body io.Reader, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	// Decode errors are ignored; whatever was read before the error still
	// gets scanned for a code.
	data, _ := io.ReadAll(body)
	return string(data)
}
