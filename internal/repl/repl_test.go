package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/types"
)

type fakeReporter struct {
	requests  []reporter.Request
	fileCalls []bool
	cancelled []string

	prepareErr error
	needsDup   bool
}

func (f *fakeReporter) Prepare(_ context.Context, req reporter.Request) (*reporter.Preview, error) {
	f.requests = append(f.requests, req)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	report := &types.BugReport{
		ID:           "r-1",
		Summary:      "Mapper crashes",
		Confidence:   types.ConfidenceHigh,
		Status:       types.ReportPending,
		SourceUserID: req.Source.UserID,
		NeedsConfirm: f.needsDup,
	}
	return &reporter.Preview{Report: report, NeedsConfirmation: f.needsDup}, nil
}

func (f *fakeReporter) File(_ context.Context, id, _ string, confirmed bool) (*types.BugReport, error) {
	f.fileCalls = append(f.fileCalls, confirmed)
	if f.needsDup && !confirmed {
		return nil, reporter.ErrConfirmationRequired
	}
	return &types.BugReport{ID: id, Status: types.ReportFiled, IssueNumber: 7, IssueURL: "https://github.com/Mudlet/Mudlet/issues/7"}, nil
}

func (f *fakeReporter) Cancel(_ context.Context, id, _ string) (*types.BugReport, error) {
	f.cancelled = append(f.cancelled, id)
	return &types.BugReport{ID: id, Status: types.ReportCancelled}, nil
}

func newTestREPL(t *testing.T, rep *fakeReporter) (*REPL, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	out := &bytes.Buffer{}
	r, err := New(&Config{Reporter: rep, User: "alice", Roles: []string{"helper"}, Out: out})
	require.NoError(t, err)
	return r, out
}

func TestNewRequiresReporter(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want types.Message
	}{
		{"bob: the mapper crashed", types.Message{Author: "bob", Content: "the mapper crashed"}},
		{"  bob:no space  ", types.Message{Author: "bob", Content: "no space"}},
		{"it crashed again", types.Message{Author: "alice", Content: "it crashed again"}},
		{"the error was: nil value", types.Message{Author: "alice", Content: "the error was: nil value"}},
		{": empty author", types.Message{Author: "alice", Content: ": empty author"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := ParseLine(tt.line, "alice")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConversationAndBug(t *testing.T) {
	rep := &fakeReporter{}
	r, out := newTestREPL(t, rep)
	ctx := context.Background()

	require.NoError(t, r.processInput(ctx, "bob: mapper crashes when I add a room"))
	require.NoError(t, r.processInput(ctx, "which version?"))
	require.NoError(t, r.processInput(ctx, "   "))
	require.NoError(t, r.processInput(ctx, "/show"))
	assert.Contains(t, out.String(), "bob: mapper crashes")

	require.NoError(t, r.processInput(ctx, "/bug 5"))
	require.Len(t, rep.requests, 1)
	req := rep.requests[0]
	assert.Equal(t, 5, req.MessageCount)
	assert.Equal(t, []string{"helper"}, req.Roles)
	assert.Equal(t, types.Source{ChannelID: ChannelID, UserID: "alice"}, req.Source)
	assert.Equal(t, []types.Message{
		{Author: "bob", Content: "mapper crashes when I add a room"},
		{Author: "alice", Content: "which version?"},
	}, req.Messages)
	assert.Contains(t, out.String(), "Bug Report Preview")

	err := r.processInput(ctx, "/bug")
	assert.ErrorContains(t, err, "still pending")

	require.NoError(t, r.processInput(ctx, "/file"))
	assert.Equal(t, []bool{false}, rep.fileCalls)
	assert.Nil(t, r.preview)
	assert.Empty(t, r.messages)
	assert.Contains(t, out.String(), "issues/7")
}

func TestBugErrors(t *testing.T) {
	rep := &fakeReporter{prepareErr: reporter.ErrNoMessages}
	r, _ := newTestREPL(t, rep)
	ctx := context.Background()

	assert.ErrorIs(t, r.processInput(ctx, "/bug"), reporter.ErrNoMessages)
	assert.Nil(t, r.preview)
	assert.ErrorContains(t, r.processInput(ctx, "/bug many"), "invalid message count")
	assert.ErrorContains(t, r.processInput(ctx, "/file"), "no pending report")
	assert.ErrorContains(t, r.processInput(ctx, "/cancel"), "no pending report")
	assert.ErrorContains(t, r.processInput(ctx, "/frobnicate"), "unknown command")
}

func TestFileNeedsConfirmation(t *testing.T) {
	rep := &fakeReporter{needsDup: true}
	r, out := newTestREPL(t, rep)
	ctx := context.Background()

	require.NoError(t, r.processInput(ctx, "bob: crash"))
	require.NoError(t, r.processInput(ctx, "/bug"))

	require.NoError(t, r.processInput(ctx, "/file"))
	assert.NotNil(t, r.preview)
	assert.Contains(t, out.String(), "Run /file again to confirm")

	require.NoError(t, r.processInput(ctx, "/file"))
	assert.Equal(t, []bool{false, true}, rep.fileCalls)
	assert.Nil(t, r.preview)
}

func TestFileWithConfirmFlag(t *testing.T) {
	rep := &fakeReporter{needsDup: true}
	r, _ := newTestREPL(t, rep)
	ctx := context.Background()

	require.NoError(t, r.processInput(ctx, "bob: crash"))
	require.NoError(t, r.processInput(ctx, "/bug"))
	require.NoError(t, r.processInput(ctx, "/file --confirm"))
	assert.Equal(t, []bool{true}, rep.fileCalls)
}

func TestCancelAndClear(t *testing.T) {
	rep := &fakeReporter{}
	r, out := newTestREPL(t, rep)
	ctx := context.Background()

	require.NoError(t, r.processInput(ctx, "bob: crash"))
	require.NoError(t, r.processInput(ctx, "/bug"))
	require.NoError(t, r.processInput(ctx, "/cancel"))
	assert.Equal(t, []string{"r-1"}, rep.cancelled)
	assert.Nil(t, r.preview)
	assert.Len(t, r.messages, 1)

	require.NoError(t, r.processInput(ctx, "/clear"))
	assert.Empty(t, r.messages)
	require.NoError(t, r.processInput(ctx, "/show"))
	assert.Contains(t, out.String(), "No messages collected.")
}

func TestHelpAndQuit(t *testing.T) {
	r, out := newTestREPL(t, &fakeReporter{})
	ctx := context.Background()

	require.NoError(t, r.processInput(ctx, "/help"))
	assert.Contains(t, out.String(), "/file [--confirm]")

	err := r.processInput(ctx, "/quit")
	assert.True(t, errors.Is(err, io.EOF))
	assert.True(t, errors.Is(r.processInput(ctx, "/exit"), io.EOF))
}
