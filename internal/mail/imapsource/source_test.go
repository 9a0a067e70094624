package imapsource

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/mail/types"
)

// fakeClient plays back canned search results and raw header literals.
type fakeClient struct {
	selected  string
	readOnly  bool
	ids       []uint32
	raws      map[uint32]string
	selectErr error
	searchErr error
	fetchErr  error
	loggedOut bool
}

func (f *fakeClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.selected = name
	f.readOnly = readOnly
	return &imap.MailboxStatus{Name: name, ReadOnly: readOnly}, nil
}

func (f *fakeClient) Search(*imap.SearchCriteria) ([]uint32, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.ids, nil
}

func (f *fakeClient) Fetch(_ *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	section, err := imap.ParseBodySectionName(items[0])
	if err != nil {
		return err
	}
	// Server responses carry no .PEEK suffix.
	section.Peek = false
	for _, id := range f.ids {
		ch <- &imap.Message{
			SeqNum: id,
			Body: map[*imap.BodySectionName]imap.Literal{
				section: bytes.NewBufferString(f.raws[id]),
			},
		}
	}
	return f.fetchErr
}

func (f *fakeClient) Logout() error {
	f.loggedOut = true
	return nil
}

const rawHeaders = "To: jane@example.com\r\n" +
	"Date: Mon, 15 Jan 2024 10:30:00 +0000\r\n" +
	"Subject: Hello\r\n" +
	"\r\n"

func window() types.Window {
	return types.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMessages(t *testing.T) {
	c := &fakeClient{
		ids: []uint32{1, 2},
		raws: map[uint32]string{
			1: rawHeaders,
			2: "To: bob@example.org\r\nSubject: Second\r\n\r\n",
		},
	}
	s := New(c, "", zap.NewNop().Sugar())

	var msgs []types.RawMessage
	err := s.Messages(context.Background(), window(), func(m types.RawMessage) error {
		msgs = append(msgs, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, DefaultMailbox, c.selected)
	assert.True(t, c.readOnly, "sent mailbox must be selected read-only")

	to, ok := msgs[0].Header("To")
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", to)
	subject, ok := msgs[1].Header("Subject")
	require.True(t, ok)
	assert.Equal(t, "Second", subject)
}

func TestMessagesDropsUnparsable(t *testing.T) {
	c := &fakeClient{
		ids: []uint32{1, 2},
		raws: map[uint32]string{
			1: "this is not a header block",
			2: rawHeaders,
		},
	}
	s := New(c, "", zap.NewNop().Sugar())

	var msgs []types.RawMessage
	err := s.Messages(context.Background(), window(), func(m types.RawMessage) error {
		msgs = append(msgs, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "2", msgs[0].ID)
}

func TestMessagesFetchErrorIsFatal(t *testing.T) {
	c := &fakeClient{
		ids:      []uint32{1},
		raws:     map[uint32]string{1: rawHeaders},
		fetchErr: errors.New("connection reset"),
	}
	s := New(c, "", zap.NewNop().Sugar())

	err := s.Messages(context.Background(), window(), func(types.RawMessage) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching messages")
}

func TestMessagesEmitAborts(t *testing.T) {
	c := &fakeClient{
		ids:  []uint32{1, 2, 3},
		raws: map[uint32]string{1: rawHeaders, 2: rawHeaders, 3: rawHeaders},
	}
	s := New(c, "", zap.NewNop().Sugar())

	stop := errors.New("stop")
	count := 0
	err := s.Messages(context.Background(), window(), func(types.RawMessage) error {
		count++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestCount(t *testing.T) {
	c := &fakeClient{ids: []uint32{1, 2, 3}}
	s := New(c, "Sent", zap.NewNop().Sugar())

	total, err := s.Count(context.Background(), window())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Sent", c.selected)
}

func TestCountSearchError(t *testing.T) {
	c := &fakeClient{searchErr: errors.New("boom")}
	s := New(c, "", zap.NewNop().Sugar())

	_, err := s.Count(context.Background(), window())
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	c := &fakeClient{}
	s := New(c, "", zap.NewNop().Sugar())

	require.NoError(t, s.Close())
	assert.True(t, c.loggedOut)
}

func TestCriteria(t *testing.T) {
	w := window()
	criteria := criteriaFor(w)
	assert.Equal(t, w.Start, criteria.SentSince)
	assert.Equal(t, w.End, criteria.SentBefore)
}
