package email

import (
	"io"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// messageFromEntity extracts header metadata from a parsed entity without
// touching the body. Headers carries every field as received, with RFC 2047
// encoded words decoded.
func messageFromEntity(id int, entity *gomessage.Entity) *Message {
	msg := &Message{ID: id, Headers: entityHeaders(entity)}

	h := mail.Header{Header: entity.Header}
	msg.Subject, _ = h.Subject()
	msg.Date = h.Get("Date")
	msg.MessageID = h.Get("Message-Id")
	msg.From = decodeHeaderValue(h.Get("From"))
	msg.To = decodeHeaderValue(h.Get("To"))
	msg.Cc = decodeHeaderValue(h.Get("Cc"))

	return msg
}

// entityHeaders flattens all header fields into a name -> value map.
func entityHeaders(entity *gomessage.Entity) map[string]string {
	headers := make(map[string]string)
	fields := entity.Header.Fields()
	for fields.Next() {
		headers[fields.Key()] = decodeHeaderValue(fields.Value())
	}
	return headers
}

// decodeHeaderValue decodes RFC 2047 encoded words, honoring the declared
// charset. Undecodable values are returned as received.
func decodeHeaderValue(v string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// parseEntityBody fills TextBody and HTMLBody from the entity, handling
// both single-part and multipart messages (including nested multipart).
// Attachment parts do not participate in body selection.
func parseEntityBody(msg *Message, entity *gomessage.Entity) {
	if mr := entity.MultipartReader(); mr != nil {
		parseMultipart(msg, mr)
	} else {
		parseSinglePart(msg, entity)
	}
}

// parseMultipart iterates over parts of a multipart message, keeping the
// first plain-text and the first HTML part found.
func parseMultipart(msg *Message, mr gomessage.MultipartReader) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		if disp, _, _ := part.Header.ContentDisposition(); strings.EqualFold(disp, "attachment") {
			continue
		}

		ct, _, _ := part.Header.ContentType()
		switch {
		case strings.HasPrefix(ct, "text/plain") && msg.TextBody == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				msg.TextBody = string(body)
			}

		case strings.HasPrefix(ct, "text/html") && msg.HTMLBody == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				msg.HTMLBody = string(body)
			}

		case strings.HasPrefix(ct, "multipart/"):
			if nested := part.MultipartReader(); nested != nil {
				parseMultipart(msg, nested)
			}
		}
	}
}

// parseSinglePart reads the body of a non-multipart entity. POP3 transfer
// terminates the final line, so a single trailing CRLF is framing rather
// than content and is dropped.
func parseSinglePart(msg *Message, entity *gomessage.Entity) {
	ct, _, _ := entity.Header.ContentType()
	raw, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}
	body := strings.TrimSuffix(string(raw), "\r\n")
	if strings.HasPrefix(ct, "text/html") {
		msg.HTMLBody = body
	} else {
		msg.TextBody = body
	}
}
