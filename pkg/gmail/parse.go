package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/sells-group/gemsieve/internal/model"
)

// ParseMessage converts a raw Gmail API message into the canonical record.
// Only the first occurrence of each header is kept for lookups; attachment
// bodies are never downloaded, just their metadata.
func ParseMessage(raw *gmailv1.Message, userEmail string) *model.Message {
	msg := &model.Message{
		MessageID:    raw.Id,
		ThreadID:     raw.ThreadId,
		Labels:       raw.LabelIds,
		Snippet:      raw.Snippet,
		SizeEstimate: int(raw.SizeEstimate),
		HeadersRaw:   make(map[string][]string),
	}

	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			key := strings.ToLower(h.Name)
			msg.HeadersRaw[key] = append(msg.HeadersRaw[key], h.Value)
		}

		var htmlParts, textParts []string
		extractParts(raw.Payload, &htmlParts, &textParts, &msg.Attachments, raw.Id)
		msg.BodyHTML = strings.Join(htmlParts, "\n")
		msg.BodyText = strings.Join(textParts, "\n")
	}

	if raw.InternalDate > 0 {
		msg.Date = time.UnixMilli(raw.InternalDate).UTC()
	} else if d, err := mail.ParseDate(msg.Header("date")); err == nil {
		msg.Date = d.UTC()
	}

	if addr, err := mail.ParseAddress(msg.Header("from")); err == nil {
		msg.FromAddress = strings.ToLower(addr.Address)
		msg.FromName = strings.TrimSpace(addr.Name)
	} else {
		msg.FromAddress = strings.ToLower(strings.TrimSpace(msg.Header("from")))
	}
	msg.ReplyTo = msg.Header("reply-to")
	msg.ToAddresses = parseAddressList(msg.Header("to"))
	msg.CCAddresses = parseAddressList(msg.Header("cc"))
	msg.Subject = msg.Header("subject")
	msg.IsSent = msg.FromAddress != "" && msg.FromAddress == strings.ToLower(userEmail)

	return msg
}

func parseAddressList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(raw)
	if err != nil {
		// Tolerate malformed lists: split on commas and keep anything
		// that looks like an address.
		var out []string
		for _, piece := range strings.Split(raw, ",") {
			piece = strings.TrimSpace(piece)
			if a, err := mail.ParseAddress(piece); err == nil {
				out = append(out, strings.ToLower(a.Address))
			} else if strings.Contains(piece, "@") {
				out = append(out, strings.ToLower(strings.Trim(piece, "<> ")))
			}
		}
		return out
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

func extractParts(part *gmailv1.MessagePart, htmlParts, textParts *[]string, attachments *[]model.Attachment, messageID string) {
	if part == nil {
		return
	}

	if part.Filename != "" {
		att := model.Attachment{
			MessageID: messageID,
			Filename:  part.Filename,
			MimeType:  part.MimeType,
		}
		if part.Body != nil {
			att.SizeBytes = part.Body.Size
			att.AttachmentID = part.Body.AttachmentId
		}
		*attachments = append(*attachments, att)
		return
	}

	if len(part.Parts) > 0 {
		for _, sub := range part.Parts {
			extractParts(sub, htmlParts, textParts, attachments, messageID)
		}
		return
	}

	if part.Body == nil || part.Body.Data == "" {
		return
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(part.Body.Data, "="))
	if err != nil {
		return
	}

	switch part.MimeType {
	case "text/html":
		*htmlParts = append(*htmlParts, string(decoded))
	case "text/plain":
		*textParts = append(*textParts, string(decoded))
	}
}
