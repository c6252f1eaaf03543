package eml

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func writeMessage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "message.eml")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(content, "\n", "\r\n")), 0600))
	return path
}

func TestExtractor_SupportedTypes(t *testing.T) {
	assert.Equal(t, []domain.FileType{domain.FileTypeEML}, New().SupportedTypes())
}

func TestExtractor_PlainMessage(t *testing.T) {
	path := writeMessage(t, `From: Alice <alice@example.com>
To: bob@example.com
Cc: carol@example.com
Subject: =?UTF-8?B?SGVsbG8gUGFyaXM=?=
Date: Mon, 02 Jan 2006 15:04:05 -0700
Content-Type: text/plain; charset=utf-8

Alice met Bob in Paris.
`)

	ext, err := New().Extract(context.Background(), path, domain.ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, ext.PageCount)
	assert.Equal(t, "Alice met Bob in Paris.", ext.Pages[1])
	require.NotNil(t, ext.Email)
	assert.Equal(t, "Alice <alice@example.com>", ext.Email.From)
	assert.Equal(t, "bob@example.com", ext.Email.To)
	assert.Equal(t, "carol@example.com", ext.Email.Cc)
	assert.Equal(t, "Hello Paris", ext.Email.Subject)
	require.NotNil(t, ext.Email.SentAt)
	assert.True(t, ext.Email.SentAt.Equal(time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)))
}

func TestExtractor_BadDate(t *testing.T) {
	path := writeMessage(t, `From: a@example.com
Subject: Hi
Date: sometime last week

body
`)

	ext, err := New().Extract(context.Background(), path, domain.ExtractOptions{})
	require.NoError(t, err)
	assert.Nil(t, ext.Email.SentAt)
	assert.Equal(t, "body", ext.Pages[1])
}

func TestExtractor_MultipartPrefersPlain(t *testing.T) {
	path := writeMessage(t, `From: a@example.com
Subject: Multi
Content-Type: multipart/alternative; boundary="XYZ"

--XYZ
Content-Type: text/html; charset=utf-8

<p>html body</p>
--XYZ
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

cGxhaW4gYm9keQ==
--XYZ--
`)

	ext, err := New().Extract(context.Background(), path, domain.ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, "plain body", ext.Pages[1])
}

func TestExtractor_HTMLFallback(t *testing.T) {
	path := writeMessage(t, `From: a@example.com
Subject: Html only
Content-Type: multipart/mixed; boundary="OUTER"

--OUTER
Content-Type: multipart/alternative; boundary="INNER"

--INNER
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<html><head><title>News</title></head><body><p>First =
paragraph</p><p>Second</p></body></html>
--INNER--
--OUTER--
`)

	ext, err := New().Extract(context.Background(), path, domain.ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Title: News\n\nFirst paragraph\n\nSecond", ext.Pages[1])
}

func TestExtractor_Errors(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.eml"), domain.ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrExtraction)

	path := writeMessage(t, "no header separator and no colon")
	_, err = New().Extract(context.Background(), path, domain.ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}
