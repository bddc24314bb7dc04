package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/mailbox"
)

func TestRunArchive_MovesSeenMessages(t *testing.T) {
	t.Parallel()

	m := newTestMocks()
	m.dialer.box = newFakeMailbox(map[uint32][]byte{
		1: []byte("Subject: one\r\n\r\nbody"),
		2: []byte("Subject: two\r\n\r\nbody"),
		3: []byte("Subject: PBX\r\n\r\nnot relayed yet"),
	})
	_ = m.dialer.box.MarkSeen(1)
	_ = m.dialer.box.MarkSeen(2)

	if err := runArchive(context.Background(), m.env(), ""); err != nil {
		t.Fatalf("runArchive() error = %v", err)
	}

	out := m.stdout.String()
	if !strings.HasPrefix(out, "moved 2 messages to INBOX.") {
		t.Errorf("stdout = %q", out)
	}
	if n, _ := m.dialer.box.SearchSeen(); len(n) != 0 {
		t.Errorf("%d seen messages left in inbox", len(n))
	}
	if n, _ := m.dialer.box.SearchUnseen(""); len(n) != 1 || n[0] != 3 {
		t.Errorf("unseen messages = %v, want [3]", n)
	}
	if len(m.transcriber.got) != 0 || len(m.bot.tokens) != 0 {
		t.Error("archive built relay collaborators it does not need")
	}
	if m.dialer.got[0].Host != "imap.example.com" {
		t.Errorf("dialer host = %q", m.dialer.got[0].Host)
	}
}

func TestRunArchive_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		m := newTestMocks()
		m.config.cfg.IMAP.Password = ""
		if err := runArchive(context.Background(), m.env(), ""); !errors.Is(err, config.ErrMissingSetting) {
			t.Fatalf("runArchive() error = %v, want ErrMissingSetting", err)
		}
	})

	t.Run("mailbox unreachable", func(t *testing.T) {
		t.Parallel()

		m := newTestMocks()
		m.dialer.box.dialErr = mailbox.ErrConnect
		if err := runArchive(context.Background(), m.env(), ""); !errors.Is(err, mailbox.ErrConnect) {
			t.Fatalf("runArchive() error = %v, want ErrConnect", err)
		}
	})
}
