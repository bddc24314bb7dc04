package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/ffmpeg"
	"github.com/vmrelay/vmrelay/internal/ledger"
	"github.com/vmrelay/vmrelay/internal/mailbox"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	cfg config.Config
	err error

	mu    sync.Mutex
	paths []string
}

func (m *mockConfigLoader) Load(path string) (config.Config, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	return m.cfg, m.err
}

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

// mockFFmpegResolver reports ffmpeg missing unless path is set.
type mockFFmpegResolver struct {
	path string
}

func (m *mockFFmpegResolver) Resolve(configured string) (string, error) {
	if m.path == "" {
		return "", fmt.Errorf("%w: not in PATH", ffmpeg.ErrNotFound)
	}
	return m.path, nil
}

// ---------------------------------------------------------------------------
// Mock TranscriberFactory
// ---------------------------------------------------------------------------

// stubTranscriber answers every chunk with the same text.
type stubTranscriber struct {
	text string
	err  error

	mu     sync.Mutex
	calls  int
	closed bool
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ audio.Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

func (s *stubTranscriber) Format() audio.Format { return audio.Linear16(8000) }

func (s *stubTranscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubTranscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mockTranscriberFactory struct {
	tr  *stubTranscriber
	err error

	mu  sync.Mutex
	got []config.Config
}

func (m *mockTranscriberFactory) NewTranscriber(_ context.Context, cfg config.Config) (transcribe.Transcriber, error) {
	m.mu.Lock()
	m.got = append(m.got, cfg)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.tr, nil
}

// ---------------------------------------------------------------------------
// Mock BotFactory
// ---------------------------------------------------------------------------

// captureBot records every request sent to Telegram.
type captureBot struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (b *captureBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

// Captions returns the caption or text of every request, in order.
func (b *captureBot) Captions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sent))
	for _, c := range b.sent {
		switch cfg := c.(type) {
		case tgbotapi.AudioConfig:
			out = append(out, cfg.Caption)
		case tgbotapi.VoiceConfig:
			out = append(out, cfg.Caption)
		case tgbotapi.MessageConfig:
			out = append(out, cfg.Text)
		}
	}
	return out
}

type mockBotFactory struct {
	bot *captureBot
	err error

	mu     sync.Mutex
	tokens []string
}

func (m *mockBotFactory) NewBot(token string) (Bot, error) {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.bot, nil
}

// ---------------------------------------------------------------------------
// Mock DialerFactory and in-memory mailbox
// ---------------------------------------------------------------------------

// fakeMailbox is a single-folder IMAP server. It is its own Session.
type fakeMailbox struct {
	mu       sync.Mutex
	messages map[uint32][]byte
	seen     map[uint32]bool
	deleted  map[uint32]bool
	folders  map[string][]uint32
	dialErr  error
	onDial   func()
	dials    int
}

func newFakeMailbox(messages map[uint32][]byte) *fakeMailbox {
	if messages == nil {
		messages = map[uint32][]byte{}
	}
	return &fakeMailbox{
		messages: messages,
		seen:     map[uint32]bool{},
		deleted:  map[uint32]bool{},
		folders:  map[string][]uint32{},
	}
}

func (f *fakeMailbox) Dial(_ context.Context) (mailbox.Session, error) {
	f.mu.Lock()
	f.dials++
	onDial, err := f.onDial, f.dialErr
	f.mu.Unlock()
	if onDial != nil {
		onDial()
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fakeMailbox) Select(string) error { return nil }

func (f *fakeMailbox) SearchUnseen(string) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uids []uint32
	for _, uid := range slices.Sorted(maps.Keys(f.messages)) {
		if !f.seen[uid] {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (f *fakeMailbox) SearchSeen() ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uids []uint32
	for _, uid := range slices.Sorted(maps.Keys(f.messages)) {
		if f.seen[uid] {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (f *fakeMailbox) Fetch(uid uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.messages[uid]
	if !ok {
		return nil, fmt.Errorf("uid %d: %w", uid, mailbox.ErrNotFound)
	}
	return raw, nil
}

func (f *fakeMailbox) MarkSeen(uid uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[uid] = true
	return nil
}

func (f *fakeMailbox) Exists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.folders[name]
	return ok, nil
}

func (f *fakeMailbox) Create(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[name] = nil
	return nil
}

func (f *fakeMailbox) Copy(uids []uint32, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[dest] = append(f.folders[dest], uids...)
	return nil
}

func (f *fakeMailbox) MarkDeleted(uids []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uid := range uids {
		f.deleted[uid] = true
	}
	return nil
}

func (f *fakeMailbox) Expunge() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid := range f.deleted {
		delete(f.messages, uid)
	}
	clear(f.deleted)
	return nil
}

func (f *fakeMailbox) Logout() error { return nil }

func (f *fakeMailbox) Seen(uid uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[uid]
}

func (f *fakeMailbox) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

type mockDialerFactory struct {
	box *fakeMailbox

	mu  sync.Mutex
	got []config.IMAPConfig
}

func (m *mockDialerFactory) NewDialer(cfg config.IMAPConfig) mailbox.Dialer {
	m.mu.Lock()
	m.got = append(m.got, cfg)
	m.mu.Unlock()
	return m.box
}

// ---------------------------------------------------------------------------
// Mock LedgerFactory
// ---------------------------------------------------------------------------

// closeTracker wraps a MemoryStore to observe Close.
type closeTracker struct {
	*ledger.MemoryStore

	mu     sync.Mutex
	closed bool
}

func (c *closeTracker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *closeTracker) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type mockLedgerFactory struct {
	store *closeTracker
	err   error
}

func (m *mockLedgerFactory) NewLedger(_ context.Context, _ config.RedisConfig) (ledger.Store, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.store, nil
}

// Compile-time interface verification.
var (
	_ ConfigLoader       = (*mockConfigLoader)(nil)
	_ FFmpegResolver     = (*mockFFmpegResolver)(nil)
	_ TranscriberFactory = (*mockTranscriberFactory)(nil)
	_ BotFactory         = (*mockBotFactory)(nil)
	_ DialerFactory      = (*mockDialerFactory)(nil)
	_ LedgerFactory      = (*mockLedgerFactory)(nil)
	_ mailbox.Session    = (*fakeMailbox)(nil)
	_ ledger.Store       = (*closeTracker)(nil)
)
