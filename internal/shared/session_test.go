package shared

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "csdash_session", "secret", time.Hour, false), mr
}

func TestSessionRoundTripWithFlash(t *testing.T) {
	sm, mr := newSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	sess.AddFlash(FlashMessage{Kind: FlashSuccess, Message: "saved"})

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sess.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, mr.Exists("session:"+sess.ID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "v", loaded.Get("k"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	sm, mr := newSessionManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), nil, sess))

	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, nil, sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestCSRFTokens(t *testing.T) {
	sm, _ := newSessionManager(t)
	csrf := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)

	_, err = csrf.EnsureToken(ctx, nil)
	assert.Error(t, err)
}

type recordingRecorder struct {
	logs []AuditLog
	err  error
}

func (r *recordingRecorder) Record(_ context.Context, log AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

func TestRecordAuditFillsActorAndSwallowsErrors(t *testing.T) {
	sess := &Session{ID: "abc"}
	ctx := ContextWithSession(context.Background(), sess)

	rec := &recordingRecorder{err: errors.New("db down")}
	RecordAudit(ctx, rec, nil, AuditLog{Action: AuditNoteSave, Entity: "customer", EntityID: "c1"})
	require.Len(t, rec.logs, 1)
	assert.Equal(t, "session:abc", rec.logs[0].Actor)

	RecordAudit(ctx, nil, nil, AuditLog{Action: AuditNoteSave})
	assert.Equal(t, "anonymous", ActorFromContext(context.Background()))
}
