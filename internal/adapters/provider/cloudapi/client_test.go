package cloudapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path   string
	auth   string
	body   map[string]any
	method string
}

// newServer returns a test server that records the last request and replies
// with the given status and body.
func newServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestSendText(t *testing.T) {
	srv, captured := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.HBgL"}]}`)
	c := New(srv.URL, "token-123", "555000", time.Second)

	res, err := c.SendText(context.Background(), "+15550001", "hello there", "")
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBgL", res.ProviderID)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/555000/messages", captured.path)
	assert.Equal(t, "Bearer token-123", captured.auth)
	assert.Equal(t, "whatsapp", captured.body["messaging_product"])
	assert.Equal(t, "+15550001", captured.body["to"])
	assert.Equal(t, "text", captured.body["type"])

	text, ok := captured.body["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello there", text["body"])
	assert.NotContains(t, captured.body, "context")
}

func TestSendTextAsReply(t *testing.T) {
	srv, captured := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.1"}]}`)
	c := New(srv.URL, "token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "re: hi", "wamid.prev")
	require.NoError(t, err)

	reply, ok := captured.body["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "wamid.prev", reply["message_id"])
}

func TestSendTemplate(t *testing.T) {
	srv, captured := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.2"}]}`)
	c := New(srv.URL, "token", "555000", time.Second)

	components := []ports.TemplateComponent{{
		Type: "body",
		Parameters: []ports.TemplateParameter{{
			Type: "text",
			Text: "Ada",
		}},
	}}
	res, err := c.SendTemplate(context.Background(), "+15550001", "welcome", "en_US", components)
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", res.ProviderID)

	tpl, ok := captured.body["template"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "welcome", tpl["name"])
	lang, ok := tpl["language"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "en_US", lang["code"])
}

func TestMarkAsReadRequest(t *testing.T) {
	srv, captured := newServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, "token", "555000", time.Second)

	require.NoError(t, c.MarkAsRead(context.Background(), "wamid.inbound"))
	assert.Equal(t, "read", captured.body["status"])
	assert.Equal(t, "wamid.inbound", captured.body["message_id"])
}

func TestSendTextProviderErrorBody(t *testing.T) {
	body := `{"error":{"message":"(#131030) Recipient phone number not in allowed list","type":"OAuthException","code":131030,"error_subcode":2655007}}`
	srv, _ := newServer(t, http.StatusBadRequest, body)
	c := New(srv.URL, "token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "hello", "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderAPI, domain.KindOf(err))

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 131030, de.Code)
	assert.Equal(t, 2655007, de.Subcode)
	assert.Contains(t, de.Message, "not in allowed list")
}

func TestSendTextUnauthorized(t *testing.T) {
	body := `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`
	srv, _ := newServer(t, http.StatusUnauthorized, body)
	c := New(srv.URL, "bad-token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "hello", "")
	assert.Equal(t, domain.ErrAuthentication, domain.KindOf(err))
}

func TestSendTextUnparseableErrorBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	c := New(srv.URL, "token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "hello", "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderAPI, domain.KindOf(err))
	assert.Contains(t, err.Error(), "502")
}

func TestSendTextMissingMessageID(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"messages":[]}`)
	c := New(srv.URL, "token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "hello", "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderAPI, domain.KindOf(err))
}

func TestSendTextNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Connection refused from here on.
	c := New(srv.URL, "token", "555000", time.Second)

	_, err := c.SendText(context.Background(), "+15550001", "hello", "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderAPI, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err), "transport failures must be retryable")
}
