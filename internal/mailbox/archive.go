package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vmrelay/vmrelay/internal/logger"
)

// ArchiveFolder names the weekly folder: INBOX.<year>.<prev week>-<week>,
// using the ISO week of t.
func ArchiveFolder(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("INBOX.%d.%d-%d", year, week-1, week)
}

// Archiver moves handled messages out of the inbox into the weekly folder.
type Archiver struct {
	dialer  Dialer
	mailbox string
	log     *logger.Logger
	now     func() time.Time
}

// NewArchiver creates an Archiver for mailbox (INBOX when empty).
func NewArchiver(dialer Dialer, mailbox string, log *logger.Logger) *Archiver {
	if mailbox == "" {
		mailbox = DefaultMailbox
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Archiver{dialer: dialer, mailbox: mailbox, log: log, now: time.Now}
}

// Archive copies every \Seen message to the weekly folder, creating it
// when missing, then flags the originals \Deleted and expunges. Unseen
// mail stays in the inbox for the poller. Returns the folder and the
// number of messages moved.
func (a *Archiver) Archive(ctx context.Context) (string, int, error) {
	folder := ArchiveFolder(a.now())

	sess, err := a.dialer.Dial(ctx)
	if err != nil {
		return folder, 0, err
	}
	defer func() { _ = sess.Logout() }()

	if err := sess.Select(a.mailbox); err != nil {
		return folder, 0, fmt.Errorf("select %s: %w", a.mailbox, err)
	}

	exists, err := sess.Exists(folder)
	if err != nil {
		return folder, 0, fmt.Errorf("list %s: %w", folder, err)
	}
	if !exists {
		if err := sess.Create(folder); err != nil {
			return folder, 0, fmt.Errorf("create %s: %w", folder, err)
		}
		a.log.Info("archive folder created", logger.Fields("folder", folder))
	}

	uids, err := sess.SearchSeen()
	if err != nil {
		return folder, 0, fmt.Errorf("search %s: %w", a.mailbox, err)
	}
	if len(uids) == 0 {
		a.log.Info("nothing to archive", logger.Fields("folder", folder))
		return folder, 0, nil
	}

	// Originals are only deleted once the copy succeeded.
	if err := sess.Copy(uids, folder); err != nil {
		return folder, 0, fmt.Errorf("copy to %s: %w", folder, err)
	}
	if err := sess.MarkDeleted(uids); err != nil {
		return folder, 0, fmt.Errorf("flag deleted: %w", err)
	}
	if err := sess.Expunge(); err != nil {
		return folder, 0, fmt.Errorf("expunge: %w", err)
	}

	a.log.Info("inbox archived", logger.Fields("folder", folder, "messages", len(uids)))
	return folder, len(uids), nil
}
