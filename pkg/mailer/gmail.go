package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail sends through the Gmail API as the account owning the credentials.
type Gmail struct {
	svc    *gmail.Service
	Sender string
}

// NewGmail expects an authorized_user credentials file holding a refresh token.
func NewGmail(ctx context.Context, credentialsFile, sender string) (*Gmail, error) {
	svc, err := gmail.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gmail.GmailSendScope),
	)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Gmail{svc: svc, Sender: sender}, nil
}

func (g *Gmail) Send(ctx context.Context, to, subject, text, html string) error {
	raw, err := buildMIME(g.Sender, to, subject, text, html)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(c).Do()
	return err
}

// buildMIME assembles a multipart/alternative message with whichever of the
// text and html bodies are present.
func buildMIME(from, to, subject, text, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct{ contentType, content string }{
		{"text/plain", text},
		{"text/html", html},
	} {
		if part.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {part.contentType + `; charset="UTF-8"`},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
