package feedback

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Message(context.Background(), Message{Kind: KindWarning, Text: "insufficient points", Duration: 4 * time.Second})
	term.Notify(context.Background(), Notification{Kind: KindError, Title: "Critical error", Text: "server down"})

	assert.Equal(t, "[warning] insufficient points\n[error] Critical error: server down\n", buf.String())
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.Message(context.Background(), Message{Kind: KindInfo, Text: "a"})
	rec.Notify(context.Background(), Notification{Kind: KindError, Title: "b"})

	msgs := rec.Messages()
	assert.Len(t, msgs, 1)
	msgs[0].Text = "mutated"
	assert.Equal(t, "a", rec.Messages()[0].Text)
	assert.Len(t, rec.Notifications(), 1)
}

func TestRouter(t *testing.T) {
	var hooked int
	r := NewRouter("/login", OnRedirect(func(context.Context) { hooked++ }))
	r.Navigate("/dashboard")

	r.RedirectToLogin(context.Background())
	assert.Equal(t, "/login", r.Location())
	assert.Equal(t, 1, r.Redirects())

	r.RedirectToLogin(context.Background())
	assert.Equal(t, 1, r.Redirects(), "already on login")
	assert.Equal(t, 1, hooked)

	r.Navigate("/chat")
	r.RedirectToLogin(context.Background())
	assert.Equal(t, 2, r.Redirects())
}
