package momo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"movie-membership/internal/domain"
)

func newTestClient(url string, timeout time.Duration) Gateway {
	return NewClient(Config{
		Endpoint:    url,
		PartnerCode: "MOMO",
		PartnerName: "Test",
		StoreID:     "MomoTestStore",
		AccessKey:   testAccessKey,
		SecretKey:   testSecretKey,
		Timeout:     timeout,
	})
}

func TestClientCreate_SendsSignedRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, createPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"partnerCode":"MOMO","orderId":"MOMO1700000000000","resultCode":0,"message":"ok","payUrl":"https://pay.example/x"}`))
	}))
	defer srv.Close()

	res, raw, err := newTestClient(srv.URL, time.Second).Create(context.Background(), sampleCreateParams())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/x", res.PayURL)
	require.Contains(t, string(raw), "payUrl")

	require.Equal(t, "74ad779302bee6a1f045ea477ad09dcb5f3efe0d6039ca84f9cf2e5c9d416f02", got["signature"])
	require.Equal(t, "50000", got["amount"])
	require.Equal(t, "MomoTestStore", got["storeId"])
	require.Equal(t, "vi", got["lang"])
	require.Equal(t, true, got["autoCapture"])
}

func TestClientCreate_UpstreamFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"rejected": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"resultCode":13,"message":"Merchant authentication failed"}`))
		},
		"no pay url": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"resultCode":0}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, _, err := newTestClient(srv.URL, time.Second).Create(context.Background(), sampleCreateParams())
			require.ErrorIs(t, err, domain.ErrUpstream)
		})
	}
}

func TestClientCreate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, _, err := newTestClient(srv.URL, 50*time.Millisecond).Create(context.Background(), sampleCreateParams())
	require.ErrorIs(t, err, domain.ErrUpstream)
}

func TestClientQuery(t *testing.T) {
	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, queryPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"orderId":"O1","requestId":"O1","amount":50000,"transId":4088878653,"resultCode":0}`))
	}))
	defer srv.Close()

	res, _, err := newTestClient(srv.URL, time.Second).Query(context.Background(), "O1", "O1")
	require.NoError(t, err)
	require.Equal(t, 0, res.ResultCode)
	require.Equal(t, "4088878653", res.TransID.String())

	want := Sign(QueryFields(testAccessKey, "MOMO", "O1", "O1"), testSecretKey)
	require.Equal(t, want, got.Signature)
}
