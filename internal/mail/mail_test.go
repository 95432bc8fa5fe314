package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markit/attendance/internal/config"
)

func testMessage() Message {
	return Message{
		To:      []mail.Address{{Name: "Asha", Address: "asha@test.edu"}},
		Subject: "Reset your password",
		Text:    "Follow the link",
		HTML:    "<p>Follow the link</p>",
	}
}

func TestNewSender(t *testing.T) {
	sender, err := NewSender(config.Mail{Provider: "console", FromAddress: "no-reply@test.edu"}, "Mark It")
	require.NoError(t, err)
	assert.IsType(t, &ConsoleSender{}, sender)

	sender, err = NewSender(config.Mail{Provider: "sendgrid", SendGridAPIKey: "key"}, "Mark It")
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, sender)

	_, err = NewSender(config.Mail{Provider: "sendgrid"}, "Mark It")
	assert.Error(t, err)

	_, err = NewSender(config.Mail{Provider: "pigeon"}, "Mark It")
	assert.Error(t, err)
}

func TestConsoleSender(t *testing.T) {
	sender := NewConsoleSender("Mark It", mail.Address{Address: "no-reply@test.edu"})

	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.ErrorIs(t, sender.Send(context.Background(), Message{Subject: "nobody"}), ErrNoRecipients)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "[Mark It] Reset your password", sent[0].Subject)
}

func TestSendGridSender(t *testing.T) {
	var got struct {
		Personalizations []struct {
			To      []struct{ Email string } `json:"to"`
			Subject string                   `json:"subject"`
		} `json:"personalizations"`
		From    struct{ Email string } `json:"from"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
	}
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendGridEndpoint, r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSendGridSender("sg-key", "Mark It", mail.Address{Name: "Mark It", Address: "no-reply@test.edu"})
	sender.host = server.URL

	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.Equal(t, "Bearer sg-key", auth)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "[Mark It] Reset your password", got.Personalizations[0].Subject)
	assert.Equal(t, "asha@test.edu", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "no-reply@test.edu", got.From.Email)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	sender := NewSendGridSender("bad", "", mail.Address{Address: "no-reply@test.edu"})
	sender.host = server.URL

	err := sender.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
