package chat

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/modules/stubserver"
	"github.com/example/sportsedu-client/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const e2eWait = 5 * time.Second

type backend struct {
	stub   *stubserver.Module
	apiURL string
	wsURL  string
}

func startBackend(t *testing.T) *backend {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := stubserver.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	stub := stubserver.NewModule(cfg, &mockLogger{}, stubserver.WithListener(ln))
	require.NoError(t, stub.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stub.Stop(ctx)
	})

	addr := ln.Addr().String()
	return &backend{stub: stub, apiURL: "http://" + addr + "/api", wsURL: "ws://" + addr}
}

type account struct {
	session *session.Session
	api     *platform.Service
	chat    *Module
}

// signUp registers username, logs in and builds a chat module that uses the account's token.
func (b *backend) signUp(t *testing.T, username, adminCode string) *account {
	t.Helper()
	ctx := context.Background()

	var token string
	api := platform.NewService(gateway.NewClient(b.apiURL, gateway.TokenFunc(func() string { return token })))

	_, err := api.Signup(ctx, platform.SignupRequest{
		Username: username, Password: username + "-pw", Name: username, Affiliation: "Club", AdminCode: adminCode,
	})
	require.NoError(t, err)
	resp, err := api.Login(ctx, username, username+"-pw")
	require.NoError(t, err)
	token = resp.AccessToken

	me, err := api.Me(ctx)
	require.NoError(t, err)

	return &account{
		session: session.New(token, me, time.Now()),
		api:     api,
		chat:    NewModule(Config{WebSocketURL: b.wsURL}, api, &mockLogger{}),
	}
}

func (a *account) open(t *testing.T, rentalID int64) *Panel {
	t.Helper()
	p, err := a.chat.Open(context.Background(), rentalID, a.session)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func texts(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message.Message)
	}
	return out
}

func TestEndToEnd_RentalChat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	b := startBackend(t)
	ctx := context.Background()
	coach := b.signUp(t, "coach", "team2002")
	student := b.signUp(t, "student", "")

	equip, err := coach.api.CreateEquipment(ctx, platform.EquipmentCreate{
		Name: "Racket", Category: "TENNIS", TotalQty: 2, RentalFee: 5000,
	})
	require.NoError(t, err)
	r, err := student.api.CreateRental(ctx, platform.RentalCreate{
		EquipID: equip.EquipID, StartDate: time.Now(), EndDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, coach.session.UserID(), r.InstructorID())

	studentPanel := student.open(t, r.RentalID)
	coachPanel := coach.open(t, r.RentalID)
	waitClosed(t, studentPanel.HistoryLoaded(), "student history")
	waitClosed(t, coachPanel.HistoryLoaded(), "coach history")

	require.Eventually(t, func() bool {
		return b.stub.Health(ctx).Details["stream_clients"] == 2
	}, e2eWait, 10*time.Millisecond)

	require.NoError(t, studentPanel.Send("Hello coach"))
	require.Eventually(t, func() bool {
		return len(studentPanel.Entries()) == 1 && len(coachPanel.Entries()) == 1
	}, e2eWait, 10*time.Millisecond)

	require.NoError(t, coachPanel.Send("  Welcome to class  "))
	require.Eventually(t, func() bool {
		return len(studentPanel.Entries()) == 2 && len(coachPanel.Entries()) == 2
	}, e2eWait, 10*time.Millisecond)

	want := []string{"Hello coach", "Welcome to class"}
	assert.Equal(t, want, texts(studentPanel.Entries()))
	assert.Equal(t, want, texts(coachPanel.Entries()))

	studentEntries := studentPanel.Entries()
	assert.True(t, studentEntries[0].Mine)
	assert.False(t, studentEntries[1].Mine)
	assert.Equal(t, "coach", studentEntries[1].Message.SenderName())
	assert.Equal(t, student.session.UserID(), studentEntries[1].Message.ReceiverID)

	coachEntries := coachPanel.Entries()
	assert.False(t, coachEntries[0].Mine)
	assert.True(t, coachEntries[1].Mine)

	// A panel opened later sees the same conversation as history.
	replay := student.open(t, r.RentalID)
	waitClosed(t, replay.HistoryLoaded(), "replayed history")
	assert.Equal(t, want, texts(replay.Entries()))

	rooms, err := coach.api.ChatRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, r.RentalID, rooms[0].RentalID)
}

func TestEndToEnd_OutsiderIsRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	b := startBackend(t)
	ctx := context.Background()
	coach := b.signUp(t, "coach", "team2002")
	student := b.signUp(t, "student", "")
	outsider := b.signUp(t, "outsider", "")

	equip, err := coach.api.CreateEquipment(ctx, platform.EquipmentCreate{Name: "Mat", Category: "FITNESS", TotalQty: 1})
	require.NoError(t, err)
	r, err := student.api.CreateRental(ctx, platform.RentalCreate{
		EquipID: equip.EquipID, StartDate: time.Now(), EndDate: time.Now(),
	})
	require.NoError(t, err)

	_, err = outsider.api.ChatHistory(ctx, r.RentalID)
	assert.Equal(t, http.StatusForbidden, gateway.StatusOf(err), "history error: %v", err)

	p := outsider.open(t, r.RentalID)
	select {
	case <-p.StreamDone():
	case <-time.After(e2eWait):
		t.Fatal("stream was not closed for an outsider")
	}
	assert.False(t, p.Connected())
	assert.Empty(t, p.Entries())
	assert.NoError(t, p.Send("let me in"))
}
