package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HibiKier/wuthering-waves/pkg/notify"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{ err error }

func (f failingNotifier) NotifySuperusers(context.Context, string) error { return f.err }

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	n, err := notify.NewWebhookNotifier(&notify.Config{WebhookURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, n.NotifySuperusers(context.Background(), "access blocked"))
	require.Equal(t, "access blocked", got["message"])
	require.Equal(t, "superuser_alert", got["type"])
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := notify.NewWebhookNotifier(&notify.Config{WebhookURL: srv.URL})
	require.NoError(t, err)
	err = n.NotifySuperusers(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestNewNotifiers_RequireConfig(t *testing.T) {
	_, err := notify.NewWebhookNotifier(&notify.Config{})
	require.Error(t, err)

	_, err = notify.NewResendNotifier(&notify.Config{APIKey: "k"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "from email is required")
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := notify.Multi{notify.LogNotifier{}, failingNotifier{err: boom}}
	require.ErrorIs(t, m.NotifySuperusers(context.Background(), "x"), boom)
	require.NoError(t, notify.Multi{notify.LogNotifier{}}.NotifySuperusers(context.Background(), "x"))
}
