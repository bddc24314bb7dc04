package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Session is one authenticated mailbox connection. It is the only surface
// the poller and archiver use, so tests can replace the server.
type Session interface {
	Select(mailbox string) error
	SearchUnseen(subject string) ([]uint32, error)
	// SearchSeen lists messages already flagged \Seen.
	SearchSeen() ([]uint32, error)

	// Fetch returns the full raw message without setting \Seen.
	Fetch(uid uint32) ([]byte, error)
	MarkSeen(uid uint32) error

	Exists(mailbox string) (bool, error)
	Create(mailbox string) error
	Copy(uids []uint32, dest string) error
	MarkDeleted(uids []uint32) error
	Expunge() error

	Logout() error
}

// Dialer opens authenticated sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Compile-time interface checks.
var (
	_ Dialer  = (*IMAPDialer)(nil)
	_ Session = (*imapSession)(nil)
)

// DefaultTimeout bounds connecting and every IMAP command.
const DefaultTimeout = 30 * time.Second

// IMAPDialer connects with go-imap.
type IMAPDialer struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

// Dial connects and logs in. A failed login closes the connection.
func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	nd := &net.Dialer{Timeout: timeout}

	var (
		c   *client.Client
		err error
	)
	if d.TLS {
		c, err = client.DialWithDialerTLS(nd, addr, &tls.Config{ServerName: d.Host})
	} else {
		c, err = client.DialWithDialer(nd, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, addr, err)
	}
	c.Timeout = timeout

	if err := c.Login(d.Username, d.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: login %s: %v", ErrConnect, d.Username, err)
	}
	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *client.Client
}

func (s *imapSession) Select(mailbox string) error {
	_, err := s.c.Select(mailbox, false)
	return err
}

func (s *imapSession) SearchUnseen(subject string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if subject != "" {
		criteria.Header.Add("Subject", subject)
	}
	return s.c.UidSearch(criteria)
}

func (s *imapSession) SearchSeen() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.SeenFlag}
	return s.c.UidSearch(criteria)
}

func (s *imapSession) Fetch(uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{Peek: true}
	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(uidSet(uid), []imap.FetchItem{section.FetchItem()}, ch)
	}()

	var (
		raw     []byte
		readErr error
	)
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil || raw != nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: uid %d", ErrNotFound, uid)
	}
	return raw, nil
}

func (s *imapSession) MarkSeen(uid uint32) error {
	return s.addFlag(uidSet(uid), imap.SeenFlag)
}

func (s *imapSession) Exists(mailbox string) (bool, error) {
	ch := make(chan *imap.MailboxInfo, 8)
	done := make(chan error, 1)
	go func() { done <- s.c.List("", mailbox, ch) }()

	found := false
	for info := range ch {
		if info.Name == mailbox {
			found = true
		}
	}
	return found, <-done
}

func (s *imapSession) Create(mailbox string) error {
	return s.c.Create(mailbox)
}

func (s *imapSession) Copy(uids []uint32, dest string) error {
	return s.c.UidCopy(uidSet(uids...), dest)
}

func (s *imapSession) MarkDeleted(uids []uint32) error {
	return s.addFlag(uidSet(uids...), imap.DeletedFlag)
}

func (s *imapSession) Expunge() error {
	return s.c.Expunge(nil)
}

func (s *imapSession) Logout() error {
	return s.c.Logout()
}

func (s *imapSession) addFlag(set *imap.SeqSet, flag string) error {
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return s.c.UidStore(set, item, []interface{}{flag}, nil)
}

func uidSet(uids ...uint32) *imap.SeqSet {
	set := new(imap.SeqSet)
	set.AddNum(uids...)
	return set
}
