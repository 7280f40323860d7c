package notify_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/notify"
	"github.com/warp/benefit-engine/render"
)

func testMessage() notify.Message {
	v := benefits.Voucher{
		Code:          "VCH-0123456789ABCDEF",
		Employee:      benefits.EmployeeSnapshot{Number: "E-1001", Name: "Ana Souza", Email: "ana@example.com"},
		Benefit:       benefits.BenefitSnapshot{ID: "meal", Name: "Vale Refeição"},
		Value:         decimal.RequireFromString("35"),
		Justification: "Plantão",
		Urgent:        true,
	}
	doc := render.Artifact{FileName: "voucher-VCH-0123456789ABCDEF.pdf", ContentType: render.ContentTypePDF, Data: []byte("%PDF-1.3")}
	return notify.NewMessage(v, doc)
}

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDispatcher_Success(t *testing.T) {
	// GIVEN: A delivery service that accepts the message
	// WHEN: Dispatching a voucher
	// THEN: The request carries every field and the attachment in base64

	var seen map[string]any
	srv := newServer(t, http.StatusOK, `{"success":true,"message":"queued"}`, &seen)

	d := notify.NewHTTPDispatcher(srv.URL, "secret", "Portal do Colaborador", time.Second)
	require.NoError(t, d.Dispatch(context.Background(), testMessage()))

	assert.Equal(t, "ana@example.com", seen["to_email"])
	assert.Equal(t, "Ana Souza", seen["to_name"])
	assert.Equal(t, "VCH-0123456789ABCDEF", seen["voucher_code"])
	assert.Equal(t, map[string]any{"id": "meal", "name": "Vale Refeição", "value": "35.00"}, seen["benefit"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), seen["attachment"])
	assert.Equal(t, "voucher-VCH-0123456789ABCDEF.pdf", seen["attachment_name"])
	assert.Equal(t, "Plantão", seen["justification"])
	assert.Equal(t, true, seen["urgent"])
}

func TestHTTPDispatcher_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"refused", http.StatusOK, `{"success":false,"message":"mailbox full"}`, notify.ErrDispatchFailed},
		{"server error", http.StatusBadGateway, `upstream down`, notify.ErrDispatchFailed},
		{"not json", http.StatusOK, `<html>ok</html>`, notify.ErrMalformedResponse},
		{"no success field", http.StatusOK, `{"message":"hi"}`, notify.ErrMalformedResponse},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.status, tc.body, nil)
			d := notify.NewHTTPDispatcher(srv.URL, "secret", "", time.Second)

			err := d.Dispatch(context.Background(), testMessage())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPDispatcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := notify.NewHTTPDispatcher(url, "", "", time.Second).Dispatch(context.Background(), testMessage())
	assert.ErrorIs(t, err, notify.ErrDispatchFailed)
}

func TestDisabledDispatcher(t *testing.T) {
	err := notify.DisabledDispatcher{}.Dispatch(context.Background(), testMessage())
	assert.ErrorIs(t, err, notify.ErrDisabled)
}
