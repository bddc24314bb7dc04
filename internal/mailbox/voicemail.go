package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	// Registers decoders for non-UTF-8 text parts.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Voicemail is one PBX notification email, reduced to what the relay needs.
type Voicemail struct {
	UID       uint32
	MessageID string
	Subject   string
	Body      string // first text/plain part
	Audio     []byte // first audio/* part; nil when the mail carries none
	AudioType string
	AudioName string
}

// HasAudio reports whether an audio part was found.
func (v Voicemail) HasAudio() bool {
	return len(v.Audio) > 0
}

// Key identifies the message for the processed ledger. The Message-ID is
// stable across folders and servers; the UID is only a fallback.
func (v Voicemail) Key() string {
	if v.MessageID != "" {
		return v.MessageID
	}
	return "uid:" + strconv.FormatUint(uint64(v.UID), 10)
}

// Parse reads a raw RFC 5322 message. Parts in unknown charsets or
// transfer encodings are kept undecoded rather than failing the message.
func Parse(uid uint32, raw []byte) (Voicemail, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return Voicemail{}, fmt.Errorf("%w: uid %d: %v", ErrParse, uid, err)
	}

	h := mail.Header{Header: entity.Header}
	vm := Voicemail{UID: uid}
	vm.Subject, _ = h.Subject()
	vm.MessageID, _ = h.MessageID()

	var foundText bool
	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}
		if part.MultipartReader() != nil {
			return nil
		}

		ct, params, _ := part.Header.ContentType()
		switch {
		case ct == "text/plain" && !foundText:
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return err
			}
			vm.Body = string(b)
			foundText = true
		case strings.HasPrefix(ct, "audio/") && vm.Audio == nil:
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return err
			}
			vm.Audio = b
			vm.AudioType = ct
			vm.AudioName = attachmentName(part.Header, params)
		}
		return nil
	})
	if walkErr != nil {
		return Voicemail{}, fmt.Errorf("%w: uid %d: %v", ErrParse, uid, walkErr)
	}
	return vm, nil
}

// attachmentName prefers the Content-Disposition filename, then the
// Content-Type name parameter, then a name derived from the type.
func attachmentName(h message.Header, ctParams map[string]string) string {
	if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if ctParams["name"] != "" {
		return ctParams["name"]
	}
	ct, _, _ := h.ContentType()
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return "voicemail" + exts[0]
	}
	return "voicemail.wav"
}
