package mailbox_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/vmrelay/vmrelay/internal/mailbox"
)

// fakeServer is an in-memory mailbox shared by every session it hands out.
type fakeServer struct {
	mu       sync.Mutex
	messages map[uint32][]byte
	seen     map[uint32]bool
	deleted  map[uint32]bool
	folders  map[string][]uint32
	dials    int
	logouts  int
	// Per-step failures.
	dialErr   error
	selectErr error
	fetchErr  map[uint32]error
	// Ordered log of handler calls and seen flags.
	events []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		messages: make(map[uint32][]byte),
		seen:     make(map[uint32]bool),
		deleted:  make(map[uint32]bool),
		folders:  make(map[string][]uint32),
		fetchErr: make(map[uint32]error),
	}
}

func (s *fakeServer) add(uid uint32, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[uid] = []byte(raw)
}

func (s *fakeServer) isSeen(uid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[uid]
}

func (s *fakeServer) record(ev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeServer) Dial(context.Context) (mailbox.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	return &fakeSession{srv: s}, nil
}

type fakeSession struct {
	srv *fakeServer
}

func (f *fakeSession) Select(string) error {
	return f.srv.selectErr
}

func (f *fakeSession) SearchUnseen(subject string) ([]uint32, error) {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	var uids []uint32
	for uid, raw := range f.srv.messages {
		if f.srv.seen[uid] || f.srv.deleted[uid] {
			continue
		}
		if subject != "" && !strings.Contains(subjectOf(raw), subject) {
			continue
		}
		uids = append(uids, uid)
	}
	slices.Sort(uids)
	return uids, nil
}

func (f *fakeSession) SearchSeen() ([]uint32, error) {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	var uids []uint32
	for uid := range f.srv.messages {
		if f.srv.seen[uid] && !f.srv.deleted[uid] {
			uids = append(uids, uid)
		}
	}
	slices.Sort(uids)
	return uids, nil
}

func (f *fakeSession) Fetch(uid uint32) ([]byte, error) {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if err := f.srv.fetchErr[uid]; err != nil {
		return nil, err
	}
	raw, ok := f.srv.messages[uid]
	if !ok {
		return nil, fmt.Errorf("%w: uid %d", mailbox.ErrNotFound, uid)
	}
	return raw, nil
}

func (f *fakeSession) MarkSeen(uid uint32) error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.seen[uid] = true
	f.srv.events = append(f.srv.events, fmt.Sprintf("seen %d", uid))
	return nil
}

func (f *fakeSession) Exists(name string) (bool, error) {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	_, ok := f.srv.folders[name]
	return ok, nil
}

func (f *fakeSession) Create(name string) error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if _, ok := f.srv.folders[name]; ok {
		return errors.New("NO [ALREADYEXISTS]")
	}
	f.srv.folders[name] = nil
	return nil
}

func (f *fakeSession) Copy(uids []uint32, dest string) error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	if _, ok := f.srv.folders[dest]; !ok {
		return errors.New("NO [TRYCREATE]")
	}
	f.srv.folders[dest] = append(f.srv.folders[dest], uids...)
	return nil
}

func (f *fakeSession) MarkDeleted(uids []uint32) error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	for _, uid := range uids {
		f.srv.deleted[uid] = true
	}
	return nil
}

func (f *fakeSession) Expunge() error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	for uid := range f.srv.deleted {
		delete(f.srv.messages, uid)
	}
	return nil
}

func (f *fakeSession) Logout() error {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.logouts++
	return nil
}

func subjectOf(raw []byte) string {
	for line := range strings.SplitSeq(string(raw), "\r\n") {
		if v, ok := strings.CutPrefix(line, "Subject: "); ok {
			return v
		}
	}
	return ""
}

// voicemailMIME builds a PBX-style notification with an optional WAV attachment.
func voicemailMIME(msgID, subject, body string, audio []byte) string {
	var b strings.Builder
	b.WriteString("From: pbx@example.com\r\n")
	b.WriteString("To: office@example.com\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", msgID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"b1\"\r\n\r\n")
	b.WriteString("--b1\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body + "\r\n")
	if audio != nil {
		b.WriteString("--b1\r\n")
		b.WriteString("Content-Type: audio/x-wav; name=\"msg0001.wav\"\r\n")
		b.WriteString("Content-Disposition: attachment; filename=\"msg0001.wav\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(audio) + "\r\n")
	}
	b.WriteString("--b1--\r\n")
	return b.String()
}
