package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/vmrelay/vmrelay/internal/config"
)

// ---------------------------------------------------------------------------
// Tests for runConfigList
// ---------------------------------------------------------------------------

func TestRunConfigList_SortedAndMasked(t *testing.T) {
	t.Parallel()

	m := newTestMocks()
	if err := runConfigList(m.env(), ""); err != nil {
		t.Fatalf("runConfigList() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(m.stdout.String()), "\n")
	if len(lines) != len(config.Keys()) {
		t.Fatalf("printed %d lines, want %d", len(lines), len(config.Keys()))
	}
	if !strings.HasPrefix(lines[0], "archive.enabled = ") {
		t.Errorf("first line = %q, want archive.enabled first", lines[0])
	}

	out := m.stdout.String()
	for _, want := range []string{
		"imap.host = imap.example.com\n",
		"telegram.token = ****hIkl\n",
		"imap.password = ****ter2\n",
		"poll.interval = 1m0s\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "hunter2-hunter2") {
		t.Error("password printed in clear")
	}
}

func TestRunConfigList_LoadError(t *testing.T) {
	t.Parallel()

	m := newTestMocks()
	m.config.err = config.ErrInvalidSetting

	if err := runConfigList(m.env(), ""); !errors.Is(err, config.ErrInvalidSetting) {
		t.Fatalf("runConfigList() error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Tests for runConfigGet
// ---------------------------------------------------------------------------

func TestRunConfigGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr error
	}{
		{name: "plain value", key: "transcription.backend", want: "whisper\n"},
		{name: "duration", key: "transcription.segment", want: "59s\n"},
		{name: "secret masked", key: "telegram.token", want: "****hIkl\n"},
		{name: "unknown key", key: "imap.hostname", wantErr: ErrUnknownKey},
		{name: "empty key", key: "", wantErr: ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestMocks()
			err := runConfigGet(m.env(), "", tt.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("runConfigGet(%q) error = %v, want %v", tt.key, err, tt.wantErr)
				}
				if len(m.config.paths) != 0 {
					t.Error("config loaded for an unknown key")
				}
				return
			}
			if err != nil {
				t.Fatalf("runConfigGet(%q) unexpected error: %v", tt.key, err)
			}
			if got := m.stdout.String(); got != tt.want {
				t.Errorf("runConfigGet(%q) printed %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Tests for runConfigCheck
// ---------------------------------------------------------------------------

func TestRunConfigCheck_Valid(t *testing.T) {
	t.Parallel()

	m := newTestMocks()
	if err := runConfigCheck(m.env(), ""); err != nil {
		t.Fatalf("runConfigCheck() error = %v", err)
	}
	if !strings.Contains(m.stderr.String(), "Configuration OK (backend whisper, mailbox INBOX@imap.example.com)") {
		t.Errorf("stderr = %q", m.stderr.String())
	}
}

func TestRunConfigCheck_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	m := newTestMocks()
	m.config.cfg.IMAP.Host = ""
	m.config.cfg.Telegram.ChatID = 0
	m.config.cfg.Caption.Policy = "truncate"

	err := runConfigCheck(m.env(), "")
	if !errors.Is(err, config.ErrMissingSetting) || !errors.Is(err, config.ErrInvalidSetting) {
		t.Fatalf("runConfigCheck() error = %v", err)
	}
	for _, key := range []string{"imap.host", "telegram.chat_id", "caption.policy"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}
