package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func testSession(userID int64) *session.Session {
	return session.New("tok", user.User{UserID: userID, Username: "viewer"}, time.Now())
}

func msg(id, sender int64, text string) chat.Message {
	return chat.Message{
		ID:        id,
		RentalID:  3,
		SenderID:  sender,
		Message:   text,
		Timestamp: chat.NewTimestamp(time.Date(2024, 5, 1, 10, 0, int(id), 0, time.UTC)),
	}
}

func newTestModule(dialer *fakeDialer, history *fakeHistory) *Module {
	return NewModule(Config{WebSocketURL: "ws://backend.test"}, history, &mockLogger{}, WithDialer(dialer))
}

func openPanel(t *testing.T, m *Module, viewer int64) *Panel {
	t.Helper()
	p, err := m.Open(context.Background(), 3, testSession(viewer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func ids(entries []Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Message.ID
	}
	return out
}

func TestPanel_OneFetchOneStream(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	history := newFakeHistory(msg(1, 5, "hi"))
	m := newTestModule(dialer, history)

	p := openPanel(t, m, 9)
	waitClosed(t, p.HistoryLoaded(), "history")
	require.Eventually(t, p.Connected, waitFor, tick)

	assert.Equal(t, int32(1), history.calls.Load())
	assert.Equal(t, int32(1), dialer.dials.Load())
	assert.Equal(t, "ws://backend.test/api/chat/ws/3?token=tok", dialer.lastURL())
	assert.Equal(t, 1, m.OpenPanels())

	require.NoError(t, p.Close())
	assert.Equal(t, 1, conn.closes())
	assert.Equal(t, []int{websocket.CloseMessage}, conn.controlFrames())
	assert.Equal(t, int32(1), history.calls.Load())
	assert.Equal(t, int32(1), dialer.dials.Load())
	assert.Equal(t, 0, m.OpenPanels())
	assert.False(t, p.Connected())
}

func TestPanel_HistoryThenLiveAlignment(t *testing.T) {
	conn := newFakeConn()
	history := newFakeHistory(msg(1, 5, "hi"))
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, history), 9)

	waitClosed(t, p.HistoryLoaded(), "history")
	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Mine)

	conn.deliver(msg(2, 9, "hello"))
	require.Eventually(t, func() bool { return p.Log().Len() == 2 }, waitFor, tick)

	entries = p.Entries()
	assert.Equal(t, []int64{1, 2}, ids(entries))
	assert.False(t, entries[0].Mine)
	assert.True(t, entries[1].Mine)
	assert.Equal(t, "hello", entries[1].Message.Message)
}

func TestPanel_HistoryFailureStillStreams(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	history := newFakeHistory()
	history.err = &gateway.NetworkError{Op: "GET /chat/history/3", Err: errors.New("connection refused")}
	p := openPanel(t, newTestModule(dialer, history), 9)

	waitClosed(t, p.HistoryLoaded(), "history")
	assert.Empty(t, p.Entries())
	var netErr *gateway.NetworkError
	assert.ErrorAs(t, p.HistoryErr(), &netErr)
	require.Eventually(t, p.Connected, waitFor, tick)
	assert.Equal(t, int32(1), dialer.dials.Load())

	conn.deliver(msg(4, 5, "still here"))
	require.Eventually(t, func() bool { return p.Log().Len() == 1 }, waitFor, tick)
}

func TestPanel_LiveBufferedUntilHistory(t *testing.T) {
	conn := newFakeConn()
	history := newFakeHistory(msg(1, 5, "a"), msg(2, 9, "b"))
	history.gate = make(chan struct{})
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, history), 9)

	require.Eventually(t, p.Connected, waitFor, tick)
	conn.deliver(msg(10, 5, "early"))
	conn.deliver(msg(11, 9, "earlier reply"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, p.Log().Len(), "live messages must wait for history")

	close(history.gate)
	waitClosed(t, p.HistoryLoaded(), "history")
	require.Eventually(t, func() bool { return p.Log().Len() == 4 }, waitFor, tick)
	assert.Equal(t, []int64{1, 2, 10, 11}, ids(p.Entries()))
}

func TestPanel_DeduplicatesByID(t *testing.T) {
	conn := newFakeConn()
	history := newFakeHistory(msg(1, 5, "a"))
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, history), 9)
	waitClosed(t, p.HistoryLoaded(), "history")

	conn.deliver(msg(1, 5, "a"))
	conn.deliver(msg(0, 9, "no id"))
	conn.deliver(msg(0, 9, "no id"))
	conn.deliver(msg(2, 5, "b"))
	conn.deliver(msg(2, 5, "b"))

	require.Eventually(t, func() bool {
		entries := p.Entries()
		return len(entries) > 0 && entries[len(entries)-1].Message.ID == 2
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int64{1, 0, 0, 2}, ids(p.Entries()))
}

func TestPanel_SkipsUndecodableFrames(t *testing.T) {
	conn := newFakeConn()
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	waitClosed(t, p.HistoryLoaded(), "history")

	conn.inbound <- []byte("not json")
	conn.deliver(msg(3, 5, "fine"))
	require.Eventually(t, func() bool { return p.Log().Len() == 1 }, waitFor, tick)
	assert.True(t, p.Connected())
}

func TestPanel_SendRejectsBlank(t *testing.T) {
	conn := newFakeConn()
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	assert.ErrorIs(t, p.Send("   "), ErrEmptyMessage)
	require.NoError(t, p.Send("  ok "))

	writes := conn.writes()
	require.Len(t, writes, 1)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(writes[0], &frame))
	assert.Equal(t, map[string]any{"message": "ok"}, frame)
	assert.Equal(t, 0, p.Log().Len(), "sent messages are not echoed locally")
}

func TestPanel_SendWithoutStreamIsNoop(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("dial tcp: connection refused")}
	p := openPanel(t, newTestModule(dialer, newFakeHistory()), 9)

	waitClosed(t, p.StreamDone(), "stream")
	assert.False(t, p.Connected())
	assert.NoError(t, p.Send("hello"))
	assert.ErrorIs(t, p.Send(""), ErrEmptyMessage)
}

func TestPanel_HistoryErrNilOnSuccess(t *testing.T) {
	p := openPanel(t, newTestModule(&fakeDialer{conn: newFakeConn()}, newFakeHistory(msg(1, 5, "hi"))), 9)
	assert.NoError(t, p.HistoryErr())
	waitClosed(t, p.HistoryLoaded(), "history")
	assert.NoError(t, p.HistoryErr())
}

func TestPanel_SendWriteFailureIsReported(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	err := p.Send("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestPanel_SendRacingStreamDropIsNoop(t *testing.T) {
	conn := newFakeConn()
	var p *Panel
	conn.onWrite = func() {
		// The stream ends between the connection snapshot and the write.
		_ = conn.Close()
		deadline := time.Now().Add(waitFor)
		for p.Connected() && time.Now().Before(deadline) {
			time.Sleep(tick)
		}
	}
	p = openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	assert.NoError(t, p.Send("hello"))
	assert.False(t, p.Connected())
	assert.Empty(t, conn.writes())
}

func TestPanel_SendAfterCloseIsNoop(t *testing.T) {
	conn := newFakeConn()
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	require.NoError(t, p.Close())
	assert.NoError(t, p.Send("hello"))
	assert.Empty(t, conn.writes())
}

func TestPanel_RemountDialsAndFetchesAgain(t *testing.T) {
	first := newFakeConn()
	dialer := &fakeDialer{conn: first}
	history := newFakeHistory(msg(1, 5, "hi"))
	m := newTestModule(dialer, history)

	p1 := openPanel(t, m, 9)
	waitClosed(t, p1.HistoryLoaded(), "first history")
	require.Eventually(t, p1.Connected, waitFor, tick)
	firstURL := dialer.lastURL()
	require.NoError(t, p1.Close())

	second := newFakeConn()
	dialer.conn = second
	p2 := openPanel(t, m, 9)
	waitClosed(t, p2.HistoryLoaded(), "second history")
	require.Eventually(t, p2.Connected, waitFor, tick)

	assert.NotEqual(t, p1.ID(), p2.ID())
	assert.Equal(t, int32(2), dialer.dials.Load())
	assert.Equal(t, int32(2), history.calls.Load())
	assert.Equal(t, firstURL, dialer.lastURL())
	assert.Equal(t, 1, first.closes())
	assert.Equal(t, 0, second.closes())
	assert.Equal(t, []int64{1}, ids(p2.Entries()))
	assert.Equal(t, 1, m.OpenPanels())

	second.deliver(msg(2, 5, "again"))
	require.Eventually(t, func() bool { return p2.Log().Len() == 2 }, waitFor, tick)
	assert.Equal(t, 1, p1.Log().Len())
}

func TestPanel_DroppedStreamIsTerminal(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	p := openPanel(t, newTestModule(dialer, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	conn.deliver(msg(7, 5, "last words"))
	close(conn.inbound)
	waitClosed(t, p.StreamDone(), "stream")

	require.Eventually(t, func() bool { return p.Log().Len() == 1 }, waitFor, tick)
	assert.False(t, p.Connected())
	assert.NoError(t, p.Send("anyone?"))
	assert.Empty(t, conn.writes())
	assert.Equal(t, int32(1), dialer.dials.Load())
	assert.Equal(t, 1, conn.closes())
}

func TestPanel_CloseDiscardsLateHistory(t *testing.T) {
	conn := newFakeConn()
	history := newFakeHistory(msg(1, 5, "late"))
	history.gate = make(chan struct{})
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, history), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	require.NoError(t, p.Close())
	close(history.gate)
	waitClosed(t, history.returned, "history fetch")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, p.Log().Len())
	select {
	case <-p.HistoryLoaded():
		t.Fatal("history must not be applied after close")
	default:
	}
	assert.Equal(t, int32(1), history.calls.Load())
}

func TestPanel_CloseWhileDialing(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn, gate: make(chan struct{})}
	p := openPanel(t, newTestModule(dialer, newFakeHistory()), 9)
	require.Eventually(t, func() bool { return dialer.dials.Load() == 1 }, waitFor, tick)

	require.NoError(t, p.Close())
	waitClosed(t, p.StreamDone(), "stream")
	assert.False(t, p.Connected())
	assert.Equal(t, 0, conn.closes())
}

func TestPanel_CloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory()), 9)
	require.Eventually(t, p.Connected, waitFor, tick)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	waitClosed(t, p.Done(), "done")
	assert.Equal(t, 1, conn.closes())
}

func TestPanel_ChangedSignals(t *testing.T) {
	conn := newFakeConn()
	p := openPanel(t, newTestModule(&fakeDialer{conn: conn}, newFakeHistory(msg(1, 5, "a"))), 9)
	waitClosed(t, p.Changed(), "seed notification")

	conn.deliver(msg(2, 5, "b"))
	waitClosed(t, p.Changed(), "append notification")
}

func TestModule_OpenWithoutTokenMakesNoCalls(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	history := newFakeHistory()
	m := newTestModule(dialer, history)

	tests := []struct {
		name string
		sess *session.Session
	}{
		{name: "nil session", sess: nil},
		{name: "empty token", sess: session.New("", user.User{UserID: 1}, time.Now())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Open(context.Background(), 3, tt.sess)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, gateway.ErrMissingToken)
			assert.True(t, gateway.IsUnauthorized(err))
		})
	}
	assert.Equal(t, int32(0), dialer.dials.Load())
	assert.Equal(t, int32(0), history.calls.Load())
	assert.Equal(t, 0, m.OpenPanels())
}

func TestModule_StopClosesPanels(t *testing.T) {
	c1, c2 := newFakeConn(), newFakeConn()
	m := newTestModule(&fakeDialer{conn: c1}, newFakeHistory())
	p1 := openPanel(t, m, 9)
	require.Eventually(t, p1.Connected, waitFor, tick)

	m.dialer = &fakeDialer{conn: c2}
	p2, err := m.Open(context.Background(), 4, testSession(9))
	require.NoError(t, err)
	require.Eventually(t, p2.Connected, waitFor, tick)
	assert.Equal(t, 2, m.OpenPanels())

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 0, m.OpenPanels())
	assert.Equal(t, 1, c1.closes())
	assert.Equal(t, 1, c2.closes())
}

func TestModule_StartRejectsBadURL(t *testing.T) {
	m := NewModule(Config{WebSocketURL: "http://backend.test"}, newFakeHistory(), &mockLogger{})
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "scheme"))
}
