package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopOnce(t *testing.T) {
	s := NewStore(time.Minute)

	id := s.Add(Success("Saved"), Warning("1 failed", "a.json: bad"))
	require.NotEmpty(t, id)

	msgs := s.Pop(id)
	require.Len(t, msgs, 2)
	assert.Equal(t, KindSuccess, msgs[0].Kind)
	assert.Equal(t, int64(3000), msgs[0].DismissMillis())
	assert.Equal(t, []string{"a.json: bad"}, msgs[1].Details)
	assert.Equal(t, int64(0), msgs[1].DismissMillis(), "Warnings are not auto-dismissed")

	assert.Nil(t, s.Pop(id), "Messages are delivered only once")
	assert.Nil(t, s.Pop(""))
	assert.Nil(t, s.Pop("unknown"))
}

func TestExpiredMessagesAreDropped(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := s.Add(Error("boom"))
	now = now.Add(2 * time.Minute)

	assert.Nil(t, s.Pop(stale))

	s.Add(Info("one"))
	old := s.Add(Info("two"))
	now = now.Add(2 * time.Minute)
	s.Add(Info("three"))

	assert.Equal(t, 1, s.Len(), "Expired entries are pruned on Add")
	assert.Nil(t, s.Pop(old))
}

func TestCookieRoundTrip(t *testing.T) {
	s := NewStore(0)

	w := httptest.NewRecorder()
	s.Set(w, Success("Email submitted"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()

	msgs := s.Consume(w2, req)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Email submitted", msgs[0].Text)

	cleared := w2.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestConsumeWithoutCookie(t *testing.T) {
	s := NewStore(time.Minute)
	w := httptest.NewRecorder()

	assert.Nil(t, s.Consume(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Empty(t, w.Result().Cookies())
}
